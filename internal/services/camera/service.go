package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"pivision/internal/config"
	"pivision/internal/logging"
	"pivision/internal/models"
)

// ErrCapture wraps any device or subprocess failure during a single capture.
// Callers treat it as per-image and recoverable.
var ErrCapture = errors.New("camera capture failed")

// Service owns the physical camera. All device access — single captures and
// live streams — is serialized through one mutex: two concurrent readers on
// the same V4L2 device or Pi camera produce undefined device state.
type Service struct {
	cfg *config.Config
	log zerolog.Logger

	// mu is the single acquisition point for the camera hardware.
	mu sync.Mutex
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg: cfg,
		log: logging.NewServiceLogger(cfg, "camera"),
	}
}

// CaptureFrame captures a single JPEG frame at the given resolution. The
// call blocks until the device is free and the capture finishes; it is not
// preemptible mid-capture.
func (s *Service) CaptureFrame(ctx context.Context, res models.Resolution) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRaspberryPiCamera() {
		return s.captureRaspistill(ctx, res)
	}
	return s.captureWebcam(res)
}

// CheckAvailability reports whether a camera is reachable without grabbing a
// frame.
func (s *Service) CheckAvailability() models.CameraStatus {
	if s.isRaspberryPiCamera() {
		if _, err := exec.LookPath("raspistill"); err != nil {
			return models.CameraStatus{Available: false, Error: "raspistill not found"}
		}
		return models.CameraStatus{Available: true, Type: "raspberrypi"}
	}

	device := fmt.Sprintf("/dev/video%d", s.cfg.CameraIndex)
	if _, err := os.Stat(device); err != nil {
		return models.CameraStatus{Available: false, Error: device + " not found"}
	}
	return models.CameraStatus{Available: true, Type: "usb", Device: device}
}

// isRaspberryPiCamera detects the Pi camera module: index 0 on Raspberry Pi
// hardware.
func (s *Service) isRaspberryPiCamera() bool {
	if s.cfg.CameraIndex != 0 {
		return false
	}
	info, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return false
	}
	return strings.Contains(string(info), "Raspberry Pi")
}
