package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"pivision/internal/models"
)

// startLoopLocked starts the recurring capture tick. SkipIfStillRunning
// keeps ticks from piling up behind a burst that sleeps through its slot
// window, and Recover turns a panicking tick into a logged error while the
// schedule keeps firing. Caller holds s.mu.
func (s *Scheduler) startLoopLocked() {
	if s.cron != nil {
		return
	}
	s.stopCh = make(chan struct{})

	clog := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(clog),
		cron.Recover(clog),
	))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.tickInterval), s.tick); err != nil {
		s.log.Error().Err(err).Msg("failed to register capture tick")
		return
	}
	c.Start()
	s.cron = c
	s.log.Debug().Dur("interval", s.tickInterval).Msg("capture loop started")
}

// stopLoopLocked stops ticking and wakes any in-flight burst. Caller holds
// s.mu. Safe to reach from within a tick: cron.Stop does not wait for the
// running job.
func (s *Scheduler) stopLoopLocked() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

// tick runs once per interval while a campaign is active. The body is a
// no-op while paused; ticking itself only stops via complete, cancel or
// shutdown.
func (s *Scheduler) tick() {
	s.mu.Lock()

	if !s.state.Active || s.state.Paused {
		s.mu.Unlock()
		return
	}

	nowMillis := s.now().UnixMilli()
	schedule := s.state.CaptureSchedule

	// First slot still in the future; everything before it has begun.
	next := -1
	for i, slot := range schedule {
		if slot.Timestamp > nowMillis {
			next = i
			break
		}
	}

	if next == -1 {
		// No more captures scheduled.
		s.completeLocked()
		s.mu.Unlock()
		return
	}

	nextAt := schedule[next].Time()
	s.state.NextCapture = &nextAt

	var current *models.CaptureSlot
	if next > 0 {
		current = &s.state.CaptureSchedule[next-1]
	}

	inWindow := current != nil &&
		!current.Captured &&
		nowMillis >= current.Timestamp &&
		nowMillis < current.Timestamp+s.slotWindow.Milliseconds()

	s.persistLocked()
	s.mu.Unlock()

	if inWindow {
		s.captureBurst(current)
	}
}

// captureBurst captures this slot's share of the quota, spread evenly across
// the slot window. It stops early, keeping partial progress, when the
// campaign is paused, cancelled or shut down between images; a single failed
// capture is logged and skipped.
func (s *Scheduler) captureBurst(slot *models.CaptureSlot) {
	s.mu.Lock()
	if !s.state.Active || s.state.Paused {
		s.mu.Unlock()
		return
	}
	// Quota guard: also protects against a re-entrant tick in the same hour.
	if s.state.CollectedCount >= s.state.TotalCount {
		s.completeLocked()
		s.mu.Unlock()
		return
	}

	totalSlots := len(s.state.CaptureSchedule)
	imagesPerSlot := (s.state.TotalCount + totalSlots - 1) / totalSlots
	remaining := s.state.TotalCount - s.state.CollectedCount
	count := imagesPerSlot
	if remaining < count {
		count = remaining
	}

	res, err := models.ParseResolution(s.state.Resolution)
	if err != nil {
		res, _ = models.ParseResolution(models.DefaultResolution)
	}
	folder := s.state.FolderPath
	stop := s.stopCh
	logger := s.log
	s.mu.Unlock()

	spacing := s.slotWindow / time.Duration(count)
	logger.Info().
		Str("date", slot.Date).
		Int("hour", slot.Hour).
		Int("images", count).
		Dur("spacing", spacing).
		Msg("starting capture burst")

	completed := true
	for i := 0; i < count; i++ {
		if s.interrupted() {
			completed = false
			break
		}

		if err := s.captureAndSave(folder, res); err != nil {
			logger.Error().Err(err).Msg("capture failed, skipping image")
		}

		if i < count-1 {
			select {
			case <-time.After(spacing):
			case <-stop:
				completed = false
			}
			if !completed {
				break
			}
		}
	}

	s.mu.Lock()
	if s.state.Active {
		if completed {
			// Mark the slot consumed so later ticks inside the same hour
			// don't burst it again. A burst cut short by pause leaves the
			// flag clear; the rest of the hour remains claimable.
			slot.Captured = true
		}
		s.persistLocked()
	}
	s.mu.Unlock()
}

// captureAndSave grabs one frame and writes it as <epochMillis>.jpg into the
// campaign folder.
func (s *Scheduler) captureAndSave(folder string, res models.Resolution) error {
	img, err := s.camera.CaptureFrame(context.Background(), res)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%d.jpg", s.now().UnixMilli())
	if err := os.WriteFile(filepath.Join(folder, name), img, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active {
		// Cancelled while the frame was in flight; the folder may already
		// be gone and the count must not move.
		return nil
	}
	s.state.CollectedCount++
	s.log.Info().
		Str("file", name).
		Int("collected", s.state.CollectedCount).
		Int("total", s.state.TotalCount).
		Msg("image captured")
	return nil
}

// interrupted reports whether the burst should stop between images.
func (s *Scheduler) interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Active || s.state.Paused
}

// cronLogger adapts zerolog to cron's logging interface. Routine messages
// (skips, schedule info) land at debug.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
