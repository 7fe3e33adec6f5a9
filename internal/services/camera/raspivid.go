package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// streamRaspivid streams MJPEG from the Pi camera module by reading
// raspivid's stdout and splitting it into individual JPEG images.
// Caller holds s.mu.
func (s *Service) streamRaspivid(ctx context.Context, onFrame func(jpeg []byte) error) error {
	cmd := exec.CommandContext(ctx, "raspivid",
		"-t", "0",
		"-w", strconv.Itoa(s.cfg.CameraWidth),
		"-h", strconv.Itoa(s.cfg.CameraHeight),
		"-fps", strconv.Itoa(s.cfg.CameraFPS),
		"-o", "-",
		"-cd", "MJPEG",
		"-n",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("raspivid stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start raspivid: %w", err)
	}
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	s.log.Info().Int("fps", s.cfg.CameraFPS).Msg("MJPEG stream started (raspivid)")
	defer s.log.Info().Msg("MJPEG stream stopped")

	err = copyMJPEGFrames(stdout, onFrame)
	if ctx.Err() != nil {
		// Cancellation kills raspivid; the resulting pipe error is expected.
		return nil
	}
	return err
}

// copyMJPEGFrames splits a concatenated MJPEG byte stream into individual
// JPEG images on their SOI/EOI markers and hands each complete one to
// onFrame. Returns nil when onFrame signals it is done (client gone) and an
// error when the stream ends or the reader fails.
func copyMJPEGFrames(r io.Reader, onFrame func(jpeg []byte) error) error {
	var buf []byte
	chunk := make([]byte, 32*1024)

	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			for {
				start := bytes.Index(buf, jpegSOI)
				if start < 0 {
					// No frame start in sight; keep only a possible
					// trailing half marker.
					if len(buf) > 1 {
						buf = buf[len(buf)-1:]
					}
					break
				}
				end := bytes.Index(buf[start+2:], jpegEOI)
				if end < 0 {
					buf = buf[start:]
					break
				}

				frame := make([]byte, end+4)
				copy(frame, buf[start:start+2+end+2])
				buf = buf[start+2+end+2:]

				if err := onFrame(frame); err != nil {
					return nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return fmt.Errorf("mjpeg stream ended")
			}
			return fmt.Errorf("read mjpeg stream: %w", readErr)
		}
	}
}
