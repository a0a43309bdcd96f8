package converter

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of records kept by NewHistory(0).
const DefaultHistorySize = 100

// Conversion statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record describes one finished conversion.
type Record struct {
	ID         string    `json:"id"`
	Repository string    `json:"repository"`
	Status     string    `json:"status"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// History keeps the most recent conversion records in memory.
type History struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

// NewHistory creates a History holding up to size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{records: make([]Record, size)}
}

// Add stores r, evicting the oldest record when full.
func (h *History) Add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// List returns the stored records, newest first.
func (h *History) List() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.records)
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.records)) % len(h.records)
		out = append(out, h.records[idx])
	}
	return out
}
