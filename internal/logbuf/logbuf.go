// ABOUTME: Bounded in-memory ring buffer of human-readable status log lines
// ABOUTME: Diagnostic feed for the HTTP facade; oldest entries are evicted first

package logbuf

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 100

// Entry is one immutable log line.
type Entry struct {
	Time    time.Time
	Message string
}

// Buffer is a fixed-capacity ring of log entries. It has no durability; it
// exists so the status page can show recent activity.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a buffer holding at most capacity entries. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

// Append records a log line, evicting the oldest entry when full.
func (b *Buffer) Append(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = Entry{Time: time.Now(), Message: message}
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Appendf records a formatted log line.
func (b *Buffer) Appendf(format string, args ...any) {
	b.Append(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the buffered entries, newest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.next
	if b.full {
		count = len(b.entries)
	}
	out := make([]Entry, 0, count)
	for i := 1; i <= count; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Lines returns the buffered entries formatted for display, newest first.
func (b *Buffer) Lines() []string {
	entries := b.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Time.Format("15:04:05") + " " + e.Message
	}
	return lines
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}
