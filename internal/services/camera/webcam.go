package camera

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"pivision/internal/models"
)

// captureWebcam grabs one frame from a V4L2 webcam through OpenCV.
// Caller holds s.mu.
func (s *Service) captureWebcam(res models.Resolution) ([]byte, error) {
	cap, err := gocv.OpenVideoCapture(s.cfg.CameraIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: open /dev/video%d: %v", ErrCapture, s.cfg.CameraIndex, err)
	}
	defer cap.Close()

	cap.Set(gocv.VideoCaptureFrameWidth, float64(res.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(res.Height))
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	if !cap.IsOpened() {
		return nil, fmt.Errorf("%w: video capture is not opened", ErrCapture)
	}

	img := gocv.NewMat()
	defer img.Close()

	// First reads after opening can be stale or empty while the sensor
	// settles; retry a few times before giving up.
	var ok bool
	for attempt := 0; attempt < 5; attempt++ {
		ok = cap.Read(&img)
		if ok && !img.Empty() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ok || img.Empty() {
		return nil, fmt.Errorf("%w: no frame from device", ErrCapture)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrCapture, err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
