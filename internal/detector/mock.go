package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a deterministic implementation of the Detector interface.
// It returns the configured hands for every frame.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	err      error
	calls    int
	lastSize image.Point
	closed   bool
}

// NewMockDetector creates a new MockDetector that returns the given hands.
func NewMockDetector(hands ...HandLandmarks) *MockDetector {
	return &MockDetector{hands: hands}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns a copy of the pre-configured hands or error.
func (m *MockDetector) Detect(rgb *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if rgb != nil {
		m.lastSize = image.Pt(rgb.Cols(), rgb.Rows())
	}

	if m.err != nil {
		return nil, m.err
	}
	if len(m.hands) == 0 {
		return nil, nil
	}

	hands := make([]HandLandmarks, len(m.hands))
	copy(hands, m.hands)
	return hands, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSize returns the width and height of the last frame passed to Detect.
func (m *MockDetector) LastSize() image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSize
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// openPalmOffsets are landmark positions relative to the palm center for an
// open right hand, palm facing the camera, in normalized units.
var openPalmOffsets = [NumLandmarks]Point3D{
	Wrist:     {X: 0.00, Y: 0.25},
	ThumbCMC:  {X: 0.06, Y: 0.20, Z: 0.02},
	ThumbMCP:  {X: 0.12, Y: 0.14, Z: 0.03},
	ThumbIP:   {X: 0.17, Y: 0.09, Z: 0.03},
	ThumbTip:  {X: 0.21, Y: 0.04, Z: 0.03},
	IndexMCP:  {X: 0.06, Y: 0.03},
	IndexPIP:  {X: 0.07, Y: -0.09},
	IndexDIP:  {X: 0.08, Y: -0.17},
	IndexTip:  {X: 0.08, Y: -0.24},
	MiddleMCP: {X: 0.00, Y: 0.01},
	MiddlePIP: {X: 0.00, Y: -0.12},
	MiddleDIP: {X: 0.00, Y: -0.21},
	MiddleTip: {X: 0.00, Y: -0.29},
	RingMCP:   {X: -0.05, Y: 0.03},
	RingPIP:   {X: -0.07, Y: -0.09},
	RingDIP:   {X: -0.08, Y: -0.17},
	RingTip:   {X: -0.08, Y: -0.24},
	PinkyMCP:  {X: -0.10, Y: 0.06},
	PinkyPIP:  {X: -0.13, Y: -0.03},
	PinkyDIP:  {X: -0.15, Y: -0.10},
	PinkyTip:  {X: -0.16, Y: -0.16},
}

// OpenPalmAt returns an open right palm centered on the given normalized position.
func OpenPalmAt(cx, cy float64) HandLandmarks {
	hand := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}
	for i, off := range openPalmOffsets {
		hand.Points[i] = Point3D{X: cx + off.X, Y: cy + off.Y, Z: off.Z}
	}
	return hand
}

// OpenPalmLandmarks returns an open right palm in the middle of the frame.
func OpenPalmLandmarks() HandLandmarks {
	return OpenPalmAt(0.5, 0.5)
}

// ThumbsUpLandmarks returns a right hand with the thumb extended upward
// and the other fingers curled toward the palm.
func ThumbsUpLandmarks() HandLandmarks {
	hand := OpenPalmAt(0.5, 0.6)

	thumb := [...]int{ThumbCMC, ThumbMCP, ThumbIP, ThumbTip}
	for i, idx := range thumb {
		hand.Points[idx] = Point3D{X: 0.56, Y: 0.78 - float64(i)*0.12}
	}

	fingers := [][4]int{
		{IndexMCP, IndexPIP, IndexDIP, IndexTip},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
		{RingMCP, RingPIP, RingDIP, RingTip},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
	}
	for _, finger := range fingers {
		mcp := hand.Points[finger[0]]
		hand.Points[finger[1]] = Point3D{X: mcp.X, Y: mcp.Y - 0.02, Z: -0.05}
		hand.Points[finger[2]] = Point3D{X: mcp.X - 0.03, Y: mcp.Y, Z: -0.04}
		hand.Points[finger[3]] = Point3D{X: mcp.X - 0.05, Y: mcp.Y + 0.02, Z: -0.02}
	}

	return hand
}
