package collection

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFolder(t *testing.T, s *Scheduler, name string, files ...string) {
	t.Helper()
	dir := filepath.Join(s.CollectionsDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0o644))
	}
}

func TestListCollections(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	seedFolder(t, s, "training_data_4_30-06-03-10", "1.jpg", "2.jpg", "notes.txt")

	folders, err := s.ListCollections()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "training_data_4_30-06-03-10", folders[0].Name)
	assert.Equal(t, 2, folders[0].ImageCount)
	assert.Equal(t, int64(6), folders[0].Size)
}

func TestFolderImagesSorted(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	seedFolder(t, s, "run", "b.jpg", "a.png", "c.txt")

	images, err := s.FolderImages("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.jpg"}, images)
}

func TestFolderImagesRejectsTraversal(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	_, err := s.FolderImages("../escape")
	assert.Error(t, err)
	_, err = s.FolderImages("..")
	assert.Error(t, err)
}

func TestImagePath(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	path, err := s.ImagePath("run", "1.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.CollectionsDir(), "run", "1.jpg"), path)

	_, err = s.ImagePath("run", "../secret.jpg")
	assert.Error(t, err)
	_, err = s.ImagePath("run", "schedule.json")
	assert.Error(t, err)
}

func TestDeleteCollection(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	seedFolder(t, s, "old-run", "1.jpg")
	require.NoError(t, s.DeleteCollection("old-run"))
	_, err := os.Stat(filepath.Join(s.CollectionsDir(), "old-run"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteCollectionRefusesActive(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 6, 3, 9, 30, 0, 0, time.Local)}
	s := newTestScheduler(t, t.TempDir(), clock, &fakeCamera{})

	result, err := s.Start(twoSlotConfig(4))
	require.NoError(t, err)

	assert.Error(t, s.DeleteCollection(result.FolderName))
	_, err = os.Stat(filepath.Join(s.CollectionsDir(), result.FolderName))
	assert.NoError(t, err)
}
