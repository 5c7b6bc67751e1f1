package controller

import (
	"time"

	"github.com/dokzlo13/chromad/internal/debounce"
	"github.com/dokzlo13/chromad/internal/sequence"
)

// Status is a point-in-time copy of the controller state.
type Status struct {
	Mode      string           `json:"mode"`
	Label     string           `json:"label"`
	Phase     debounce.Phase   `json:"phase"`
	HoldLabel string           `json:"hold_label,omitempty"`
	HoldingMs int64            `json:"holding_ms,omitempty"`
	History   []sequence.Entry `json:"history"`
	Ticks     uint64           `json:"ticks"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (c *Controller) updateStatus(now time.Time) {
	hold := c.debouncer.Snapshot()
	s := Status{
		Mode:      c.mode.Name,
		Label:     string(c.label),
		Phase:     hold.Phase,
		HoldLabel: string(hold.Label),
		History:   c.history.Entries(),
		Ticks:     c.ticks,
		UpdatedAt: now,
	}
	if hold.Phase == debounce.PhaseHolding && !now.IsZero() {
		s.HoldingMs = c.debouncer.Elapsed(now).Milliseconds()
	}

	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Snapshot returns the state as of the last tick.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
