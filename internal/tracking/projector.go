package tracking

import (
	"errors"
	"fmt"
	"image"

	"github.com/ayusman/handtrack/internal/detector"
	"gocv.io/x/gocv"
)

// ErrHandIndex is returned when a hand index does not select a detected hand.
var ErrHandIndex = errors.New("hand index out of range")

// ProjectLandmarks converts normalized landmarks into pixel coordinates for a
// width x height image. Coordinates are truncated toward zero, never rounded.
func ProjectLandmarks(hand *detector.HandLandmarks, width, height int) []image.Point {
	points := make([]image.Point, detector.NumLandmarks)
	for i, lm := range hand.Points {
		points[i] = image.Point{
			X: int(lm.X * float64(width)),
			Y: int(lm.Y * float64(height)),
		}
	}
	return points
}

// Project returns the pixel coordinates of the landmarks of hands[handIndex]
// for the size of frame. Only one hand is projected per call.
//
// An empty hands slice yields an empty result and no error. When drawMarkers
// is true a filled marker is drawn at every point onto frame in place.
func Project(frame *gocv.Mat, hands []detector.HandLandmarks, handIndex int, drawMarkers bool) ([]image.Point, error) {
	if len(hands) == 0 {
		return []image.Point{}, nil
	}
	if handIndex < 0 || handIndex >= len(hands) {
		return nil, fmt.Errorf("%w: %d of %d", ErrHandIndex, handIndex, len(hands))
	}
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	points := ProjectLandmarks(&hands[handIndex], frame.Cols(), frame.Rows())

	if drawMarkers {
		if err := drawMarkersOn(frame, points); err != nil {
			return nil, err
		}
	}

	return points, nil
}
