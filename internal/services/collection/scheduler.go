package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pivision/internal/logging"
	"pivision/internal/models"
)

// collectionsDirName holds one sub-folder per campaign under the data dir.
const collectionsDirName = "training_data"

// Subjects for lifecycle events, published when an EventPublisher is wired.
const (
	SubjectStarted   = "pivision.collection.started"
	SubjectPaused    = "pivision.collection.paused"
	SubjectResumed   = "pivision.collection.resumed"
	SubjectCancelled = "pivision.collection.cancelled"
	SubjectCompleted = "pivision.collection.completed"
)

// FrameSource is the narrow camera contract the scheduler needs: a blocking,
// non-cancellable, possibly slow JPEG capture whose occasional failure is
// tolerated.
type FrameSource interface {
	CaptureFrame(ctx context.Context, res models.Resolution) ([]byte, error)
}

// EventPublisher pushes station events to interested subscribers. May be nil.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// Options configures a Scheduler. Zero values fall back to production
// defaults; tests shrink the intervals and inject a clock.
type Options struct {
	DataDir      string
	TickInterval time.Duration // default 60s
	SlotWindow   time.Duration // default 1h
	Now          func() time.Time
	Events       EventPublisher
}

// Scheduler owns the persisted collection state and drives scheduled image
// collection campaigns: at most one active campaign, resumable across
// process restarts, pause/resume/cancel without losing state.
//
// mu serializes every state transition, whether user-triggered or from the
// capture loop. The in-memory state is persisted synchronously after each
// mutation; a failed save is logged and the in-memory state stays
// authoritative until the next successful one.
type Scheduler struct {
	camera FrameSource
	store  *Store
	events EventPublisher
	now    func() time.Time

	// log carries the campaign folder while one is underway; baseLog is the
	// plain service logger it resets to.
	log     zerolog.Logger
	baseLog zerolog.Logger

	tickInterval   time.Duration
	slotWindow     time.Duration
	collectionsDir string

	mu       sync.Mutex
	schedule *models.ScheduleConfig
	state    models.CollectionState

	// Capture loop handles, non-nil only while a campaign is active.
	cron   *cron.Cron
	stopCh chan struct{}
}

// New builds a scheduler, loads any persisted state, and resumes the capture
// loop if a campaign was active when the process last stopped.
func New(camera FrameSource, opts Options) (*Scheduler, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 60 * time.Second
	}
	if opts.SlotWindow <= 0 {
		opts.SlotWindow = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base := log.With().Str("service", "collection").Logger()
	s := &Scheduler{
		camera:         camera,
		store:          NewStore(opts.DataDir),
		events:         opts.Events,
		log:            base,
		baseLog:        base,
		now:            opts.Now,
		tickInterval:   opts.TickInterval,
		slotWindow:     opts.SlotWindow,
		collectionsDir: filepath.Join(opts.DataDir, collectionsDirName),
		state:          models.IdleState(),
	}

	if err := os.MkdirAll(s.collectionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create collections dir: %w", err)
	}

	doc, found, err := s.store.Load()
	if err != nil {
		// A corrupt record should not brick the station; start idle.
		s.log.Error().Err(err).Msg("failed to load saved schedule, starting fresh")
	} else if found {
		s.schedule = doc.Schedule
		s.state = doc.State
		s.log.Info().Msg("schedule loaded from disk")
	}

	s.mu.Lock()
	if s.state.Active {
		s.log = logging.WithFolder(s.baseLog, s.state.FolderName)
		s.log.Info().
			Int("collected", s.state.CollectedCount).
			Int("total", s.state.TotalCount).
			Msg("resuming collection from saved state")
		s.startLoopLocked()
	}
	s.mu.Unlock()

	return s, nil
}

// Start accepts a new campaign. Fails with ErrAlreadyActive if one is
// running and ErrInvalidSchedule if no future capture slot can be generated.
func (s *Scheduler) Start(cfg models.ScheduleConfig) (*models.StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Active {
		return nil, ErrAlreadyActive
	}

	slots, err := Generate(cfg, s.now())
	if err != nil {
		return nil, err
	}

	if cfg.Resolution == "" {
		cfg.Resolution = models.DefaultResolution
	}
	if _, err := models.ParseResolution(cfg.Resolution); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	first := slots[0].Time()
	folderName := fmt.Sprintf("training_data_%d_%s", cfg.TotalImages, first.Format("06-01-02-15"))
	folderPath := filepath.Join(s.collectionsDir, folderName)
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return nil, fmt.Errorf("create collection folder: %w", err)
	}

	s.schedule = &cfg
	s.state = models.CollectionState{
		Active:          true,
		TotalCount:      cfg.TotalImages,
		FolderName:      folderName,
		FolderPath:      folderPath,
		CaptureSchedule: slots,
		Resolution:      cfg.Resolution,
	}
	s.log = logging.WithFolder(s.baseLog, folderName)
	s.persistLocked()
	s.startLoopLocked()

	s.log.Info().
		Int("slots", len(slots)).
		Int("total_images", cfg.TotalImages).
		Msg("collection started")
	s.publish(SubjectStarted, map[string]interface{}{
		"folderName":  folderName,
		"totalSlots":  len(slots),
		"totalImages": cfg.TotalImages,
	})

	return &models.StartResult{FolderName: folderName, TotalSlots: len(slots)}, nil
}

// Pause suspends capturing. The loop keeps ticking so resume is cheap.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active {
		return ErrNotActive
	}
	s.state.Paused = true
	s.persistLocked()
	s.log.Info().Msg("collection paused")
	s.publish(SubjectPaused, s.statusLocked())
	return nil
}

// Resume clears a pause set by Pause.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase() != models.PhasePaused {
		return ErrNotPaused
	}
	s.state.Paused = false
	s.persistLocked()
	s.log.Info().Msg("collection resumed")
	s.publish(SubjectResumed, s.statusLocked())
	return nil
}

// Cancel aborts the active campaign and resets to the idle shape. Folder
// removal is best-effort: a failed delete is logged and cancellation still
// completes.
func (s *Scheduler) Cancel(deleteImages bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active {
		return ErrNotActive
	}

	folder := s.state.FolderPath
	if deleteImages && folder != "" {
		if err := os.RemoveAll(folder); err != nil {
			s.log.Error().Err(err).Str("path", folder).Msg("failed to delete collection folder")
		} else {
			s.log.Info().Str("path", folder).Msg("deleted collection folder")
		}
	}

	s.state = models.IdleState()
	s.schedule = nil
	s.persistLocked()
	s.stopLoopLocked()

	s.log.Info().Bool("images_deleted", deleteImages).Msg("collection cancelled")
	s.log = s.baseLog
	s.publish(SubjectCancelled, map[string]interface{}{"imagesDeleted": deleteImages})
	return nil
}

// Status returns a snapshot of the current campaign. Pure read.
func (s *Scheduler) Status() models.CollectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scheduler) statusLocked() models.CollectionStatus {
	return models.CollectionStatus{
		Active:         s.state.Active,
		Paused:         s.state.Paused,
		CollectedCount: s.state.CollectedCount,
		TotalCount:     s.state.TotalCount,
		FolderName:     s.state.FolderName,
		NextCapture:    s.state.NextCapture,
	}
}

// completeLocked ends the campaign once no future slot remains or the quota
// is met. Idempotent: a no-op when already inactive.
func (s *Scheduler) completeLocked() {
	if !s.state.Active {
		return
	}
	s.log.Info().
		Int("collected", s.state.CollectedCount).
		Int("total", s.state.TotalCount).
		Msg("collection completed")

	s.state.Active = false
	s.state.Paused = false
	s.state.NextCapture = nil
	s.persistLocked()
	s.stopLoopLocked()
	s.publish(SubjectCompleted, map[string]interface{}{
		"folderName": s.state.FolderName,
		"collected":  s.state.CollectedCount,
	})
}

// persistLocked saves the current document. Save failures are logged, never
// fatal: the in-memory state remains authoritative.
func (s *Scheduler) persistLocked() {
	if err := s.store.Save(&Document{Schedule: s.schedule, State: s.state}); err != nil {
		s.log.Error().Err(err).Msg("failed to save schedule")
	}
}

func (s *Scheduler) publish(subject string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		s.log.Debug().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}

// Shutdown stops the capture loop without touching the persisted state, so
// an active campaign resumes on the next start. Waits for a running tick to
// finish, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
