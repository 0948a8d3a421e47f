package detector

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

// newServiceDetector returns a detector whose sidecar is this test binary
// running TestHelperProcess in the given mode.
func newServiceDetector(t *testing.T, mode string) *MediaPipeDetector {
	t.Helper()

	d := &MediaPipeDetector{config: DefaultConfig()}
	d.newCmd = func() *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HAND_SERVICE_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// TestHelperProcess is not a real test. It stands in for hand_service.py
// when started by newServiceDetector.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	serveFakeHands(os.Stdin, os.Stdout, os.Getenv("HAND_SERVICE_MODE"))
	os.Exit(0)
}

// serveFakeHands answers every frame with one hand whose wrist encodes the
// frame size and whose handedness encodes the first pixel.
func serveFakeHands(r io.Reader, w io.Writer, mode string) {
	enc := json.NewEncoder(w)
	for {
		rawHeader, err := readFrame(r)
		if err != nil {
			return
		}
		pixels, err := readFrame(r)
		if err != nil {
			return
		}

		var header frameHeader
		if err := json.Unmarshal(rawHeader, &header); err != nil {
			return
		}

		reply := map[string]any{"id": header.ID}
		switch {
		case mode == "wrong-id":
			reply["id"] = "not-" + header.ID
		case mode == "error":
			reply["error"] = "model not loaded"
		case len(pixels) != header.Width*header.Height*header.Channels:
			reply["error"] = fmt.Sprintf("got %d bytes for %dx%dx%d", len(pixels), header.Width, header.Height, header.Channels)
		default:
			handedness := "Right"
			if pixels[0] > 128 {
				handedness = "Left"
			}
			reply["hands"] = []jsonHand{{
				Points:     []Point3D{{X: float64(header.Width) / 1000, Y: float64(header.Height) / 1000}},
				Handedness: handedness,
				Score:      header.Config.MinDetectionConfidence,
			}}
		}

		if err := enc.Encode(reply); err != nil {
			return
		}
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func newRGBFrame(t *testing.T, width, height int, red float64) *gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(red, 0, 0, 0))
	t.Cleanup(func() { frame.Close() })
	return &frame
}

func TestMediaPipeDetector_Detect(t *testing.T) {
	t.Run("round trip through the sidecar", func(t *testing.T) {
		d := newServiceDetector(t, "")

		for i := 0; i < 2; i++ {
			hands, err := d.Detect(newRGBFrame(t, 32, 16, 200))
			if err != nil {
				t.Fatalf("Detect() call %d error = %v", i, err)
			}
			if len(hands) != 1 {
				t.Fatalf("Detect() call %d returned %d hands, want 1", i, len(hands))
			}

			wrist := hands[0].Points[Wrist]
			if wrist.X != float64(32)/1000 || wrist.Y != float64(16)/1000 {
				t.Errorf("wrist = %+v, want frame size 32x16 echoed", wrist)
			}
			if hands[0].Handedness != "Left" {
				t.Errorf("handedness = %s, want Left from the red channel", hands[0].Handedness)
			}
			if hands[0].Score != DefaultConfig().MinDetectionConfidence {
				t.Errorf("score = %f, want the configured detection confidence", hands[0].Score)
			}
		}

		if !d.started {
			t.Error("expected the sidecar to stay running between frames")
		}
	})

	t.Run("mismatched reply id restarts the sidecar", func(t *testing.T) {
		d := newServiceDetector(t, "wrong-id")

		_, err := d.Detect(newRGBFrame(t, 8, 8, 0))
		if err == nil || !strings.Contains(err.Error(), "does not match") {
			t.Fatalf("expected id mismatch error, got %v", err)
		}
		if d.started {
			t.Error("expected the sidecar to be stopped after a protocol error")
		}
	})

	t.Run("service error keeps the sidecar", func(t *testing.T) {
		d := newServiceDetector(t, "error")

		_, err := d.Detect(newRGBFrame(t, 8, 8, 0))
		if !errors.Is(err, ErrServiceReply) {
			t.Fatalf("expected ErrServiceReply, got %v", err)
		}
		if !d.started {
			t.Error("expected the sidecar to keep running after a service error")
		}
	})

	t.Run("Close stops the sidecar", func(t *testing.T) {
		d := newServiceDetector(t, "")

		if _, err := d.Detect(newRGBFrame(t, 8, 8, 0)); err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if d.started {
			t.Error("expected the sidecar to be stopped after Close")
		}
	})
}
