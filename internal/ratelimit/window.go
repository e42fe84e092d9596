package ratelimit

import (
	"strconv"
	"sync"
	"time"
)

// window is one sliding-window counter. The count only ever increases
// within [start, end); the first hit after end replaces the record.
type window struct {
	count int
	start time.Time
	end   time.Time
}

// WindowTable holds the request counters, one per (identity, endpoint
// class) pair. All operations are O(1) under a single mutex; the table
// stays small because expired windows are purged from the admission path.
type WindowTable struct {
	mu      sync.Mutex
	length  time.Duration
	windows map[string]*window
}

// NewWindowTable creates a table with the given window length.
func NewWindowTable(length time.Duration) *WindowTable {
	if length <= 0 {
		length = time.Minute
	}
	return &WindowTable{
		length:  length,
		windows: make(map[string]*window),
	}
}

// Windows are keyed by length-prefixed identity plus class. Both strings are
// caller-supplied and may contain any byte, so a plain separator could alias
// two pairs; the length prefix keeps the key injective.
func windowKey(identity, class string) string {
	return strconv.Itoa(len(identity)) + ":" + identity + class
}

// Hit records one request for the pair and returns the count within the
// current window and the window's end. A hit at or after the window end
// replaces the window with a fresh one of count 1.
func (t *WindowTable) Hit(identity, class string, now time.Time) (count int, windowEnd time.Time) {
	key := windowKey(identity, class)

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok || !now.Before(w.end) {
		w = &window{count: 1, start: now, end: now.Add(t.length)}
		t.windows[key] = w
		return w.count, w.end
	}
	w.count++
	return w.count, w.end
}

// PurgeBefore removes windows that ended before cutoff and returns how many
// were removed.
func (t *WindowTable) PurgeBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, w := range t.windows {
		if w.end.Before(cutoff) {
			delete(t.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (t *WindowTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
