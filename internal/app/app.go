// Package app runs the webcam hand tracking loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"time"

	"github.com/ayusman/handtrack/internal/capture"
	"github.com/ayusman/handtrack/internal/detector"
	"github.com/ayusman/handtrack/internal/tracking"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// FPS label style.
var (
	fpsOrigin = image.Pt(10, 70)
	fpsColor  = color.RGBA{R: 255, G: 0, B: 255, A: 0}
)

const (
	fpsScale     = 3
	fpsThickness = 3
	quitKey      = 'q'
)

// Display is the window the annotated frames are shown in. *gocv.Window satisfies it.
type Display interface {
	IMShow(img gocv.Mat) error
	WaitKey(delay int) int
	Close() error
}

// Config holds configuration options for the tracker.
type Config struct {
	CameraID    int
	WindowTitle string
	// HandIndex selects which detected hand is projected to pixels.
	HandIndex int
	// Landmark is the landmark index whose pixel position is printed every frame.
	Landmark    int
	DrawOverlay bool
	DrawMarkers bool
	Detector    detector.Config
}

// DefaultConfig returns a Config that tracks the thumb tip of the first hand.
func DefaultConfig() Config {
	return Config{
		CameraID:    0,
		WindowTitle: "Image",
		HandIndex:   0,
		Landmark:    detector.ThumbTip,
		DrawOverlay: true,
		DrawMarkers: true,
		Detector:    detector.DefaultConfig(),
	}
}

// Tracker wires a camera, an extractor and a display into the per-frame loop.
type Tracker struct {
	config    Config
	camera    capture.Camera
	display   Display
	extractor *tracking.Extractor
	out       io.Writer
	now       func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithCamera replaces the default gocv camera.
func WithCamera(c capture.Camera) Option {
	return func(t *Tracker) { t.camera = c }
}

// WithDisplay replaces the default gocv window.
func WithDisplay(d Display) Option {
	return func(t *Tracker) { t.display = d }
}

// WithOutput sets where landmark coordinates are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(t *Tracker) { t.out = w }
}

// WithClock sets the time source used for the FPS counter.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker that runs hand detection with d.
func New(config Config, d detector.Detector, opts ...Option) (*Tracker, error) {
	if config.Landmark < 0 || config.Landmark >= detector.NumLandmarks {
		return nil, fmt.Errorf("landmark index must be between 0 and %d, got %d", detector.NumLandmarks-1, config.Landmark)
	}
	if config.HandIndex < 0 || config.HandIndex >= config.Detector.MaxHands {
		return nil, fmt.Errorf("hand index must be below max hands %d, got %d", config.Detector.MaxHands, config.HandIndex)
	}

	extractor, err := tracking.NewExtractor(d, config.Detector)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		config:    config,
		extractor: extractor,
		out:       os.Stdout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.camera == nil {
		t.camera = capture.NewCamera(config.CameraID)
	}

	return t, nil
}

// Run processes frames until 'q' is pressed, the camera stops delivering
// frames, or ctx is cancelled. Each frame is fully processed before the next
// one is read. A failed camera read ends the session without an error.
func (t *Tracker) Run(ctx context.Context) error {
	session := uuid.New()

	defer func() {
		if err := t.extractor.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}()

	if err := t.camera.Open(); err != nil {
		return fmt.Errorf("open camera %d: %w", t.config.CameraID, err)
	}
	defer func() {
		if err := t.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}()

	if t.display == nil {
		t.display = gocv.NewWindow(t.config.WindowTitle)
	}
	defer t.display.Close()

	log.Printf("Tracking session %s started on camera %d", session, t.config.CameraID)

	var fps FPSCounter
	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Printf("Tracking session %s cancelled after %d frames", session, frames)
			return nil
		}

		quit, err := t.step(&fps)
		if errors.Is(err, errCameraRead) {
			log.Println("Failed to read from camera.")
			break
		}
		if err != nil {
			return err
		}
		frames++
		if quit {
			break
		}
	}

	log.Printf("Tracking session %s stopped after %d frames", session, frames)
	return nil
}

var errCameraRead = errors.New("camera read failed")

// step runs one iteration of the loop and reports whether the quit key was pressed.
func (t *Tracker) step(fps *FPSCounter) (bool, error) {
	frame, err := t.camera.ReadFrame()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errCameraRead, err)
	}
	defer frame.Close()

	hands, err := t.extractor.Detect(frame, t.config.DrawOverlay)
	if err != nil {
		return false, err
	}

	handIndex := t.config.HandIndex
	if handIndex >= len(hands) {
		// The selected hand is not in this frame.
		hands = nil
	}

	points, err := tracking.Project(frame, hands, handIndex, t.config.DrawMarkers)
	if err != nil {
		return false, err
	}
	if len(points) > 0 {
		p := points[t.config.Landmark]
		fmt.Fprintf(t.out, "[%d, %d]\n", p.X, p.Y)
	}

	rate := fps.Tick(t.now())
	label := fmt.Sprintf("FPS: %d", int(rate))
	if err := gocv.PutText(frame, label, fpsOrigin, gocv.FontHersheyPlain, fpsScale, fpsColor, fpsThickness); err != nil {
		return false, fmt.Errorf("draw fps: %w", err)
	}

	if err := t.display.IMShow(*frame); err != nil {
		return false, fmt.Errorf("show frame: %w", err)
	}
	return t.display.WaitKey(1)&0xFF == quitKey, nil
}
