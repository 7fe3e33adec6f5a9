package logging

import (
	"strings"
	"sync"
)

// Buffer is an io.Writer that retains the most recent log lines so the
// /api/logs endpoint can serve them without touching disk.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewBuffer creates a ring keeping at most max lines.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 100
	}
	return &Buffer{max: max}
}

func (b *Buffer) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}
	b.mu.Lock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
	b.mu.Unlock()
	return len(p), nil
}

// Tail returns up to limit of the most recent lines, oldest first.
func (b *Buffer) Tail(limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.lines) {
		limit = len(b.lines)
	}
	out := make([]string, limit)
	copy(out, b.lines[len(b.lines)-limit:])
	return out
}
