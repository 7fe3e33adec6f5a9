package camera

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// StreamFrames opens the camera and invokes onFrame with one JPEG per frame
// until the context is cancelled, onFrame returns an error (client gone), or
// the device fails. The camera mutex is held for the whole stream, so
// scheduled captures queue up behind a live viewer instead of fighting the
// device. The Pi camera module streams through raspivid; USB webcams go
// through OpenCV.
func (s *Service) StreamFrames(ctx context.Context, onFrame func(jpeg []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRaspberryPiCamera() {
		return s.streamRaspivid(ctx, onFrame)
	}
	return s.streamWebcam(ctx, onFrame)
}

// streamWebcam reads and JPEG-encodes frames from a V4L2 webcam.
// Caller holds s.mu.
func (s *Service) streamWebcam(ctx context.Context, onFrame func(jpeg []byte) error) error {
	cap, err := gocv.OpenVideoCapture(s.cfg.CameraIndex)
	if err != nil {
		return fmt.Errorf("open /dev/video%d: %w", s.cfg.CameraIndex, err)
	}
	defer cap.Close()

	cap.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.CameraWidth))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.CameraHeight))
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	img := gocv.NewMat()
	defer img.Close()

	frameInterval := time.Second / time.Duration(max(s.cfg.CameraFPS, 1))
	consecutiveErrors := 0

	s.log.Info().Int("fps", s.cfg.CameraFPS).Msg("MJPEG stream started")
	defer s.log.Info().Msg("MJPEG stream stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := cap.Read(&img); !ok || img.Empty() {
			consecutiveErrors++
			if consecutiveErrors >= 10 {
				return fmt.Errorf("too many consecutive frame read errors (%d)", consecutiveErrors)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		consecutiveErrors = 0

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to encode stream frame")
			continue
		}
		frame := make([]byte, buf.Len())
		copy(frame, buf.GetBytes())
		buf.Close()

		if err := onFrame(frame); err != nil {
			// Client disconnected.
			return nil
		}

		time.Sleep(frameInterval)
	}
}
