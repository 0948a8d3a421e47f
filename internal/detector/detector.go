package detector

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Detector is the hand landmark inference capability.
// Implementations that hold external resources also implement io.Closer.
type Detector interface {
	// Detect analyzes an RGB-ordered frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(rgb *gocv.Mat) ([]HandLandmarks, error)
}

// Config holds configuration options for hand detection.
type Config struct {
	// StaticImageMode treats every frame as an unrelated image instead of a video stream.
	StaticImageMode bool

	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinDetectionConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConfidence float64

	// MinTrackingConfidence is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		StaticImageMode:        false,
		MaxHands:               2,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// Validate reports whether the configuration can be handed to a detector.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("detection confidence must be between 0 and 1, got %f", c.MinDetectionConfidence)
	}
	if c.MinTrackingConfidence < 0 || c.MinTrackingConfidence > 1 {
		return fmt.Errorf("tracking confidence must be between 0 and 1, got %f", c.MinTrackingConfidence)
	}
	return nil
}
