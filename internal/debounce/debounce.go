// Package debounce turns a stream of per-tick labels into one-shot hold triggers.
package debounce

import (
	"time"

	"github.com/dokzlo13/chromad/internal/color"
)

// HoldFunc returns the minimum hold duration for a label. ok is false when the
// label has no action in the active mode; such labels never fire.
type HoldFunc func(label color.Label) (hold time.Duration, ok bool)

// Phase describes where the debouncer is in its Idle -> Holding -> Fired cycle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseHolding Phase = "holding"
)

// Snapshot is a read-only view of the hold state.
type Snapshot struct {
	Phase     Phase
	Label     color.Label
	HoldStart time.Time
}

// Debouncer tracks the current label and when it started being held.
// Firing clears both the hold start and the label, so a label that stays in
// view must be seen as a fresh change before it can hold again.
//
// Not safe for concurrent use; the controller loop owns it.
type Debouncer struct {
	last      color.Label
	holdStart time.Time
	holding   bool
}

// New creates an idle debouncer.
func New() *Debouncer {
	return &Debouncer{}
}

// Update feeds the label observed at now and reports whether the hold fired.
func (d *Debouncer) Update(label color.Label, now time.Time, hold HoldFunc) bool {
	if label != d.last {
		d.last = label
		d.holding = !label.IsNone()
		if d.holding {
			d.holdStart = now
		} else {
			d.holdStart = time.Time{}
		}
		return false
	}

	if label.IsNone() || !d.holding || hold == nil {
		return false
	}

	need, ok := hold(label)
	if !ok {
		return false
	}
	if need > 0 && now.Sub(d.holdStart) < need {
		return false
	}

	d.Reset()
	return true
}

// Reset returns the debouncer to idle.
func (d *Debouncer) Reset() {
	d.last = color.None
	d.holdStart = time.Time{}
	d.holding = false
}

// Snapshot returns the current hold state.
func (d *Debouncer) Snapshot() Snapshot {
	if !d.holding {
		return Snapshot{Phase: PhaseIdle, Label: d.last}
	}
	return Snapshot{Phase: PhaseHolding, Label: d.last, HoldStart: d.holdStart}
}

// Elapsed returns how long the current label has been held at now.
func (d *Debouncer) Elapsed(now time.Time) time.Duration {
	if !d.holding {
		return 0
	}
	return now.Sub(d.holdStart)
}
