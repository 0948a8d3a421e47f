package tracking

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/handtrack/internal/detector"
	"gocv.io/x/gocv"
)

// Drawing styles. Colors are given as RGB; gocv writes them in BGR order.
var (
	landmarkColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	connectionColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	markerColor     = color.RGBA{R: 255, G: 0, B: 255, A: 0}
)

const (
	landmarkRadius      = 2
	landmarkThickness   = 2
	connectionThickness = 2
	markerRadius        = 5
)

// DrawLandmarks draws the hand skeleton, connections first and points on top, onto frame in place.
func DrawLandmarks(frame *gocv.Mat, hand *detector.HandLandmarks) error {
	points := ProjectLandmarks(hand, frame.Cols(), frame.Rows())

	for _, c := range detector.HandConnections {
		if err := gocv.Line(frame, points[c.From], points[c.To], connectionColor, connectionThickness); err != nil {
			return fmt.Errorf("draw connection %d-%d: %w", c.From, c.To, err)
		}
	}
	for i, p := range points {
		if err := gocv.Circle(frame, p, landmarkRadius, landmarkColor, landmarkThickness); err != nil {
			return fmt.Errorf("draw landmark %d: %w", i, err)
		}
	}
	return nil
}

// drawMarkersOn draws a filled marker at every point onto frame in place.
func drawMarkersOn(frame *gocv.Mat, points []image.Point) error {
	for i, p := range points {
		if err := gocv.Circle(frame, p, markerRadius, markerColor, -1); err != nil {
			return fmt.Errorf("draw marker %d: %w", i, err)
		}
	}
	return nil
}
