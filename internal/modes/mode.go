// Package modes loads per-mode action tables and tracks the active mode.
package modes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/sequence"
)

// ErrInvalidMode is returned for mode files that fail validation.
var ErrInvalidMode = errors.New("invalid mode")

// SequenceRule binds a color pattern to an action. Action may be nil, in
// which case a match only clears the history.
type SequenceRule struct {
	sequence.Rule
	Description string
	Action      *actions.Descriptor
}

// Mode is an immutable label and sequence table.
type Mode struct {
	Name      string
	Actions   map[color.Label]actions.Descriptor
	Sequences []SequenceRule

	rules []sequence.Rule
}

// Empty returns a mode with no bindings.
func Empty(name string) *Mode {
	return &Mode{Name: name, Actions: map[color.Label]actions.Descriptor{}}
}

// Action returns the duration action bound to label.
func (m *Mode) Action(label color.Label) (actions.Descriptor, bool) {
	d, ok := m.Actions[label]
	return d, ok
}

// Hold reports the hold time of label's action. It satisfies debounce.HoldFunc.
func (m *Mode) Hold(label color.Label) (time.Duration, bool) {
	d, ok := m.Actions[label]
	if !ok {
		return 0, false
	}
	return d.HoldTime, true
}

// Rules returns the sequence rules in declared order.
func (m *Mode) Rules() []sequence.Rule {
	return m.rules
}

type ruleJSON struct {
	Pattern     []string            `json:"pattern"`
	Colors      []string            `json:"colors"`
	TimeWindow  *float64            `json:"time_window"`
	Ordered     *bool               `json:"ordered"`
	Description string              `json:"description"`
	Action      *actions.Descriptor `json:"action"`
}

type modeJSON struct {
	Actions   map[string]actions.Descriptor `json:"actions"`
	Sequences []ruleJSON                    `json:"sequences"`
}

// Parse decodes a mode document. Descriptors are validated while decoding.
func Parse(name string, data []byte) (*Mode, error) {
	return ParseWindow(name, data, sequence.DefaultWindow)
}

// ParseWindow is Parse with a different default time_window. A non-positive
// window means sequence.DefaultWindow.
func ParseWindow(name string, data []byte, window time.Duration) (*Mode, error) {
	if window <= 0 {
		window = sequence.DefaultWindow
	}

	var raw modeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidMode, name, err)
	}

	m := Empty(name)
	for key, d := range raw.Actions {
		label := color.ParseLabel(key)
		if label.IsNone() {
			return nil, fmt.Errorf("%w %q: action bound to empty label", ErrInvalidMode, name)
		}
		m.Actions[label] = d
	}

	for i, r := range raw.Sequences {
		pattern := r.Pattern
		if len(pattern) == 0 {
			pattern = r.Colors
		}
		if len(pattern) == 0 {
			return nil, fmt.Errorf("%w %q: sequence %d has an empty pattern", ErrInvalidMode, name, i)
		}

		rule := SequenceRule{
			Rule: sequence.Rule{
				Pattern: make([]color.Label, len(pattern)),
				Window:  window,
				Ordered: true,
			},
			Description: r.Description,
			Action:      r.Action,
		}
		for j, p := range pattern {
			label := color.ParseLabel(p)
			if label.IsNone() {
				return nil, fmt.Errorf("%w %q: sequence %d has an empty label at %d", ErrInvalidMode, name, i, j)
			}
			rule.Pattern[j] = label
		}
		if r.TimeWindow != nil {
			if *r.TimeWindow <= 0 {
				return nil, fmt.Errorf("%w %q: sequence %d: time_window must be positive", ErrInvalidMode, name, i)
			}
			rule.Window = time.Duration(*r.TimeWindow * float64(time.Second))
		}
		if r.Ordered != nil {
			rule.Ordered = *r.Ordered
		}

		m.Sequences = append(m.Sequences, rule)
		m.rules = append(m.rules, rule.Rule)
	}

	return m, nil
}
