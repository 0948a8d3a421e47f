package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// IdleTimeout is how long the sidecar process may sit unused before it is stopped.
const IdleTimeout = 30 * time.Second

var (
	// ErrServiceNotFound is returned when the MediaPipe sidecar script cannot be located.
	ErrServiceNotFound = errors.New("hand_service.py not found")
	// ErrServiceReply is returned when the sidecar answers a frame with an error.
	ErrServiceReply = errors.New("hand service error")
)

// MediaPipeDetector implements Detector using a Python MediaPipe Hands subprocess.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	newCmd     func() *exec.Cmd
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	scriptPath := findServiceScript()
	if scriptPath == "" {
		return nil, ErrServiceNotFound
	}

	d := &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
	}
	d.newCmd = d.pythonCommand
	return d, nil
}

// pythonCommand runs the sidecar script, preferring a virtual environment interpreter.
func (d *MediaPipeDetector) pythonCommand() *exec.Cmd {
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}
	return exec.Command(pythonPath, d.scriptPath)
}

// Detect sends an RGB frame to the sidecar and returns the hands it found.
func (d *MediaPipeDetector) Detect(rgb *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	header, err := json.Marshal(frameHeader{
		ID:       id,
		Width:    rgb.Cols(),
		Height:   rgb.Rows(),
		Channels: rgb.Channels(),
		Config:   newJSONConfig(d.config),
	})
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	hands, err := d.roundTrip(id, header, rgb.ToBytes())
	if err != nil {
		// The stream may be out of step with the sidecar; restart it on the next frame.
		if !errors.Is(err, ErrServiceReply) {
			if serr := d.shutdown(); serr != nil {
				log.Printf("Error stopping hand service: %v", serr)
			}
		}
		return nil, err
	}

	d.resetIdleTimer()

	return hands, nil
}

func (d *MediaPipeDetector) roundTrip(id string, header, pixels []byte) ([]HandLandmarks, error) {
	if err := writeFrame(d.stdin, header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := writeFrame(d.stdin, pixels); err != nil {
		return nil, fmt.Errorf("write pixels: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return decodeResponse(line, id)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = d.newCmd()

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start hand service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// writeFrame writes a 4-byte big-endian length prefix followed by data.
func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// decodeResponse parses one reply line and checks it answers the request with the given id.
func decodeResponse(line []byte, id string) ([]HandLandmarks, error) {
	var response struct {
		ID    string     `json:"id"`
		Error string     `json:"error"`
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if response.ID != id {
		return nil, fmt.Errorf("response id %q does not match request %q", response.ID, id)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServiceReply, response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	return result, nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/hand_service.py",
		"../scripts/hand_service.py",
		filepath.Join(execDir, "scripts/hand_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handtrack/scripts/hand_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handtrack/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// frameHeader precedes the raw pixel payload of every request.
type frameHeader struct {
	ID       string     `json:"id"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Channels int        `json:"channels"`
	Config   jsonConfig `json:"config"`
}

type jsonConfig struct {
	StaticImageMode        bool    `json:"static_image_mode"`
	MaxNumHands            int     `json:"max_num_hands"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
}

func newJSONConfig(c Config) jsonConfig {
	return jsonConfig{
		StaticImageMode:        c.StaticImageMode,
		MaxNumHands:            c.MaxHands,
		MinDetectionConfidence: c.MinDetectionConfidence,
		MinTrackingConfidence:  c.MinTrackingConfidence,
	}
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = h.Points[i]
	}

	return lm
}
