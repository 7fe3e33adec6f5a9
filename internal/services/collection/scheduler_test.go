package collection

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivision/internal/models"
)

// fakeCamera counts captures and hands back a static JPEG payload.
type fakeCamera struct {
	captures atomic.Int32
	fail     bool
}

func (f *fakeCamera) CaptureFrame(ctx context.Context, res models.Resolution) ([]byte, error) {
	f.captures.Add(1)
	if f.fail {
		return nil, errors.New("device busy")
	}
	return []byte("\xff\xd8fake jpeg\xff\xd9"), nil
}

// fakeClock is an injectable clock the tests advance by hand. Each read
// moves it forward a millisecond so capture filenames never collide.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// newTestScheduler uses a tick interval long enough that cron never fires
// during a test; ticks are driven by calling tick directly.
func newTestScheduler(t *testing.T, dir string, clock *fakeClock, cam FrameSource) *Scheduler {
	t.Helper()
	s, err := New(cam, Options{
		DataDir:      dir,
		TickInterval: time.Hour,
		SlotWindow:   200 * time.Millisecond,
		Now:          clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func twoSlotConfig(total int) models.ScheduleConfig {
	return models.ScheduleConfig{
		ScheduleType: models.ScheduleDates,
		Dates:        []string{"2030-06-03"},
		Hours:        []int{10, 11},
		TotalImages:  total,
	}
}

func TestStartCreatesCampaign(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	result, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalSlots)
	assert.Equal(t, "training_data_4_30-06-03-10", result.FolderName)

	status := s.Status()
	assert.True(t, status.Active)
	assert.False(t, status.Paused)
	assert.Equal(t, 4, status.TotalCount)
	assert.Equal(t, 0, status.CollectedCount)

	info, err := os.Stat(s.state.FolderPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStartWhileActive(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	_, err = s.Start(twoSlotConfig(4))
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestStartBadResolution(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	cfg := twoSlotConfig(4)
	cfg.Resolution = "huge"
	_, err := s.Start(cfg)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestPauseResume(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	assert.ErrorIs(t, s.Pause(), ErrNotActive)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Resume(), ErrNotPaused)
	require.NoError(t, s.Pause())
	assert.True(t, s.Status().Paused)
	require.NoError(t, s.Resume())
	assert.False(t, s.Status().Paused)
}

func TestTickBurstCaptures(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	cam := &fakeCamera{}
	s := newTestScheduler(t, t.TempDir(), clock, cam)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	// Just inside the first slot's window: burst captures its share of the
	// quota, ceil(4/2) = 2 images.
	clock.Set(time.Date(2030, 6, 3, 10, 0, 0, 50e6, time.Local))
	s.tick()

	assert.Equal(t, int32(2), cam.captures.Load())

	status := s.Status()
	assert.Equal(t, 2, status.CollectedCount)
	require.NotNil(t, status.NextCapture)
	assert.Equal(t, time.Date(2030, 6, 3, 11, 0, 0, 0, time.Local).UnixMilli(), status.NextCapture.UnixMilli())

	s.mu.Lock()
	assert.True(t, s.state.CaptureSchedule[0].Captured)
	s.mu.Unlock()

	// Same window again: the consumed marker keeps a second tick from
	// re-bursting the slot.
	s.tick()
	assert.Equal(t, int32(2), cam.captures.Load())

	files, err := os.ReadDir(s.state.FolderPath)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestTickOutsideWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	cam := &fakeCamera{}
	s := newTestScheduler(t, t.TempDir(), clock, cam)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	// Past the 200ms window of the 10:00 slot but before 11:00.
	clock.Set(time.Date(2030, 6, 3, 10, 30, 0, 0, time.Local))
	s.tick()

	assert.Equal(t, int32(0), cam.captures.Load())
	assert.True(t, s.Status().Active)
}

func TestTickWhilePaused(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	cam := &fakeCamera{}
	s := newTestScheduler(t, t.TempDir(), clock, cam)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Pause())

	clock.Set(time.Date(2030, 6, 3, 10, 0, 0, 50e6, time.Local))
	s.tick()

	assert.Equal(t, int32(0), cam.captures.Load())
	assert.Equal(t, 0, s.Status().CollectedCount)
}

func TestTickCompletesAfterLastSlot(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	// A tick between the slots records the upcoming capture time.
	clock.Set(time.Date(2030, 6, 3, 10, 30, 0, 0, time.Local))
	s.tick()
	require.NotNil(t, s.Status().NextCapture)

	clock.Set(time.Date(2030, 6, 3, 12, 0, 0, 0, time.Local))
	s.tick()

	status := s.Status()
	assert.False(t, status.Active)
	assert.False(t, status.Paused)
	assert.Nil(t, status.NextCapture)
}

func TestCaptureFailureSkipsImage(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	cam := &fakeCamera{fail: true}
	s := newTestScheduler(t, t.TempDir(), clock, cam)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	clock.Set(time.Date(2030, 6, 3, 10, 0, 0, 50e6, time.Local))
	s.tick()

	// Both attempts fail; the count stays put and the campaign survives.
	assert.Equal(t, int32(2), cam.captures.Load())
	status := s.Status()
	assert.True(t, status.Active)
	assert.Equal(t, 0, status.CollectedCount)
}

// signalCamera closes first after the initial capture so a test can react
// while the burst sleeps between images.
type signalCamera struct {
	fakeCamera
	first chan struct{}
	once  sync.Once
}

func (c *signalCamera) CaptureFrame(ctx context.Context, res models.Resolution) ([]byte, error) {
	img, err := c.fakeCamera.CaptureFrame(ctx, res)
	c.once.Do(func() { close(c.first) })
	return img, err
}

func TestPauseDuringBurstStopsEarly(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	cam := &signalCamera{first: make(chan struct{})}
	s := newTestScheduler(t, t.TempDir(), clock, cam)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	clock.Set(time.Date(2030, 6, 3, 10, 0, 0, 50e6, time.Local))
	done := make(chan struct{})
	go func() {
		s.tick()
		close(done)
	}()

	// Pause lands in the spacing sleep after the first image; the burst's
	// second image must never happen.
	<-cam.first
	require.NoError(t, s.Pause())
	<-done

	assert.Equal(t, int32(1), cam.captures.Load())
	status := s.Status()
	assert.True(t, status.Paused)
	assert.Equal(t, 1, status.CollectedCount)

	// The slot stays unconsumed, so the rest of the hour remains claimable.
	s.mu.Lock()
	assert.False(t, s.state.CaptureSchedule[0].Captured)
	s.mu.Unlock()

	// After resume, a tick inside the same window picks the slot back up and
	// finishes it.
	require.NoError(t, s.Resume())
	s.tick()

	assert.Equal(t, int32(3), cam.captures.Load())
	assert.Equal(t, 3, s.Status().CollectedCount)
	s.mu.Lock()
	assert.True(t, s.state.CaptureSchedule[0].Captured)
	s.mu.Unlock()
}

func TestCancelDeletesImages(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	assert.ErrorIs(t, s.Cancel(true), ErrNotActive)

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)
	folder := s.state.FolderPath

	require.NoError(t, s.Cancel(true))

	_, err = os.Stat(folder)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, s.Status().Active)
	assert.Equal(t, 0, s.Status().TotalCount)
}

func TestCancelKeepsImages(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)
	folder := s.state.FolderPath

	require.NoError(t, s.Cancel(false))

	_, err = os.Stat(folder)
	assert.NoError(t, err)
}

func TestResumeAfterRestart(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}

	s1 := newTestScheduler(t, dir, clock, &fakeCamera{})
	_, err := s1.Start(twoSlotConfig(4))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s1.Shutdown(ctx))

	// A fresh scheduler over the same data dir picks the campaign back up.
	s2 := newTestScheduler(t, dir, clock, &fakeCamera{})
	status := s2.Status()
	assert.True(t, status.Active)
	assert.Equal(t, 4, status.TotalCount)
	assert.Equal(t, "training_data_4_30-06-03-10", status.FolderName)
}

func TestCampaignLogsCarryFolder(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	_, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"folder":"training_data_4_30-06-03-10"`)
	assert.Contains(t, buf.String(), "collection started")

	buf.Reset()
	require.NoError(t, s.Cancel(false))
	assert.Contains(t, buf.String(), `"folder":"training_data_4_30-06-03-10"`)
	assert.Contains(t, buf.String(), "collection cancelled")
}
