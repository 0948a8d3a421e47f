// Package tracking turns camera frames into hand landmarks and pixel coordinates.
package tracking

import (
	"errors"
	"fmt"
	"io"

	"github.com/ayusman/handtrack/internal/detector"
	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when a frame is nil, empty, or has no area.
var ErrInvalidImage = errors.New("invalid image")

// Extractor runs hand landmark detection on BGR camera frames.
type Extractor struct {
	detector detector.Detector
	config   detector.Config
}

// NewExtractor creates an Extractor around the given detector.
// The config is fixed for the lifetime of the Extractor.
func NewExtractor(d detector.Detector, config detector.Config) (*Extractor, error) {
	if d == nil {
		return nil, errors.New("detector is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	return &Extractor{
		detector: d,
		config:   config,
	}, nil
}

// Config returns the detector configuration.
func (e *Extractor) Config() detector.Config {
	return e.config
}

// Detect finds hands in a BGR frame.
//
// The frame is converted to RGB in a scratch buffer before inference, so its
// channel order is never changed. When drawOverlay is true and at least one
// hand was found, the landmark skeleton of every returned hand is drawn onto
// frame in place. At most MaxHands hands are returned, in detector order.
// Finding no hands is not an error.
func (e *Extractor) Detect(frame *gocv.Mat, drawOverlay bool) ([]detector.HandLandmarks, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(*frame, &rgb, gocv.ColorBGRToRGB); err != nil {
		return nil, fmt.Errorf("%w: convert to RGB: %v", ErrInvalidImage, err)
	}
	if rgb.Empty() {
		return nil, fmt.Errorf("%w: convert to RGB produced no pixels", ErrInvalidImage)
	}

	hands, err := e.detector.Detect(&rgb)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	if len(hands) > e.config.MaxHands {
		hands = hands[:e.config.MaxHands]
	}

	if drawOverlay {
		for i := range hands {
			if err := DrawLandmarks(frame, &hands[i]); err != nil {
				return nil, err
			}
		}
	}

	return hands, nil
}

// Close releases the detector if it holds resources.
func (e *Extractor) Close() error {
	if c, ok := e.detector.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func checkFrame(frame *gocv.Mat) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidImage)
	}
	if frame.Empty() || frame.Cols() <= 0 || frame.Rows() <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, frame.Cols(), frame.Rows())
	}
	return nil
}
