package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWriter appends log lines to a per-day file in the logs directory
// (web-server-YYYY-MM-DD.log), rolling over when the date changes. Write
// errors are swallowed so logging never takes the process down.
type FileWriter struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
}

func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &FileWriter{dir: dir}, nil
}

func (w *FileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().Format("2006-01-02")
	if w.file == nil || day != w.day {
		if w.file != nil {
			w.file.Close()
		}
		f, err := os.OpenFile(
			filepath.Join(w.dir, "web-server-"+day+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return len(p), nil
		}
		w.file = f
		w.day = day
	}
	w.file.Write(p)
	return len(p), nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
