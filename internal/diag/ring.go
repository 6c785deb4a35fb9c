// Package diag keeps a capped in-memory log of pipeline transitions for
// post-hoc diagnosis. Nothing here survives process restart.
package diag

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries retained.
const DefaultCapacity = 50

// Entry records one pipeline event with its structured context.
type Entry struct {
	Time      time.Time         `json:"time"`
	Stage     string            `json:"stage"`
	URL       string            `json:"url,omitempty"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// RingLog is a fixed-capacity append-only event log; old entries are
// overwritten once the capacity is reached.
type RingLog struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRingLog creates a ring with the given capacity (DefaultCapacity if
// non-positive).
func NewRingLog(capacity int) *RingLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingLog{entries: make([]Entry, capacity)}
}

// Append records an entry, stamping the time if unset.
func (r *RingLog) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns a snapshot in append order, oldest first.
func (r *RingLog) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len reports how many entries are currently retained.
func (r *RingLog) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
