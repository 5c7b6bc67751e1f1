// Package sequence keeps a short, time-bounded label history and matches
// multi-step color patterns against its tail.
package sequence

import (
	"time"

	"github.com/dokzlo13/chromad/internal/color"
)

const (
	// DefaultRetention bounds how far back the history reaches.
	DefaultRetention = 5 * time.Second
	// DefaultWindow is the span a pattern must fit in when a rule sets none.
	DefaultWindow = 2500 * time.Millisecond
)

// Entry is one recorded detection.
type Entry struct {
	Label color.Label `json:"label"`
	At    time.Time   `json:"at"`
}

// Rule is a pattern and the time span it must fit in.
// Ordered rules compare the tail entry by entry; unordered rules compare as multisets.
type Rule struct {
	Pattern []color.Label
	Window  time.Duration
	Ordered bool
}

// Matches reports whether the tail of entries satisfies the rule.
func (r Rule) Matches(entries []Entry) bool {
	n := len(r.Pattern)
	if n == 0 || len(entries) < n {
		return false
	}
	tail := entries[len(entries)-n:]

	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if tail[n-1].At.Sub(tail[0].At) > window {
		return false
	}

	if r.Ordered {
		for i, e := range tail {
			if e.Label != r.Pattern[i] {
				return false
			}
		}
		return true
	}

	want := make(map[color.Label]int, n)
	for _, l := range r.Pattern {
		want[l]++
	}
	for _, e := range tail {
		if want[e.Label] == 0 {
			return false
		}
		want[e.Label]--
	}
	return true
}

// History is an insertion-ordered list of detections pruned to a retention window.
// Not safe for concurrent use; the controller loop owns it.
type History struct {
	retention time.Duration
	entries   []Entry
}

// NewHistory creates a history. A non-positive retention selects DefaultRetention.
func NewHistory(retention time.Duration) *History {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &History{retention: retention}
}

// Record appends a non-none label and drops entries older than the retention window.
func (h *History) Record(label color.Label, now time.Time) {
	if !label.IsNone() {
		h.entries = append(h.entries, Entry{Label: label, At: now})
	}

	cut := 0
	for cut < len(h.entries) && now.Sub(h.entries[cut].At) > h.retention {
		cut++
	}
	if cut > 0 {
		h.entries = append(h.entries[:0], h.entries[cut:]...)
	}
}

// TryMatch checks rules in order. On the first match the history is cleared
// and the rule's index is returned.
func (h *History) TryMatch(rules []Rule) (int, bool) {
	for i, r := range rules {
		if r.Matches(h.entries) {
			h.Clear()
			return i, true
		}
	}
	return -1, false
}

// Clear drops every entry.
func (h *History) Clear() {
	h.entries = h.entries[:0]
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Retention returns the configured retention window.
func (h *History) Retention() time.Duration {
	return h.retention
}
