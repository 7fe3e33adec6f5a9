package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"pivision/internal/models"
)

// captureRaspistill shells out to raspistill for the Pi camera module. The
// tool only writes to a file, so the frame goes through a temp path.
// Caller holds s.mu.
func (s *Service) captureRaspistill(ctx context.Context, res models.Resolution) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("capture_%d.jpg", time.Now().UnixMilli()))
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, "raspistill",
		"-w", strconv.Itoa(res.Width),
		"-h", strconv.Itoa(res.Height),
		"-o", tmp,
		"-t", "100",
		"-n",
		"-e", "jpg",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.log.Error().Err(err).Str("output", string(out)).Msg("raspistill failed")
		return nil, fmt.Errorf("%w: raspistill: %v", ErrCapture, err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: read captured frame: %v", ErrCapture, err)
	}
	return data, nil
}
