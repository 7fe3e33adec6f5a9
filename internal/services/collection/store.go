package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pivision/internal/models"
)

// scheduleFileName is the well-known persistence record under the data dir.
const scheduleFileName = "collection_schedule.json"

// Document is the single persisted record: the accepted campaign config and
// the mutable collection state.
type Document struct {
	Schedule *models.ScheduleConfig `json:"schedule"`
	State    models.CollectionState `json:"state"`
}

// Store persists the scheduler document as one JSON file. Writes go through
// a temp file and rename so a crash mid-write never corrupts the record.
type Store struct {
	path string
}

func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, scheduleFileName)}
}

func (s *Store) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}

// Load reads the persisted document. found is false when no record exists
// yet; that is not an error.
func (s *Store) Load() (doc *Document, found bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read schedule: %w", err)
	}

	doc = &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, false, fmt.Errorf("decode schedule: %w", err)
	}
	return doc, true, nil
}
