package app

import "time"

// FPSCounter measures the instantaneous frame rate between consecutive ticks.
// The zero value is ready to use; its first tick measures against the zero time.
type FPSCounter struct {
	prev time.Time
}

// Tick records now as the latest frame time and returns 1/(now-prev) in
// frames per second, or 0 when now is not after the previous tick.
func (f *FPSCounter) Tick(now time.Time) float64 {
	var fps float64
	if elapsed := now.Sub(f.prev); elapsed > 0 {
		fps = 1 / elapsed.Seconds()
	}
	f.prev = now
	return fps
}
