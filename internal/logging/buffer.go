package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept for the status API. Unit is set for records
// logged on behalf of a batch unit (the "unit" attribute).
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Unit       string         `json:"unit,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries of a run.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer creates a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1))}
}

// Write stores entry, replacing the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
	rb.mu.Unlock()
}

// ReadAll returns every entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.collect(func(LogEntry) bool { return true })
}

// Count returns the number of stored entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// Tail returns at most n of the newest entries, oldest first. n <= 0
// returns everything.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	return last(rb.ReadAll(), n)
}

// UnitTail is Tail restricted to the entries of one unit.
func (rb *RingBuffer) UnitTail(unit string, n int) []LogEntry {
	return last(rb.collect(func(e LogEntry) bool { return e.Unit == unit }), n)
}

func (rb *RingBuffer) collect(keep func(LogEntry) bool) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var ordered []LogEntry
	if rb.full {
		ordered = append(ordered, rb.entries[rb.next:]...)
	}
	ordered = append(ordered, rb.entries[:rb.next]...)

	out := make([]LogEntry, 0, len(ordered))
	for _, e := range ordered {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func last(entries []LogEntry, n int) []LogEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}
