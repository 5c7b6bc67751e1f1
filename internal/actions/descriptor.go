package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies the side effect an action performs.
type Kind string

const (
	KindOpenURL    Kind = "open_url"
	KindKeyboard   Kind = "keyboard"
	KindMouseClick Kind = "mouse_click"
	KindMouseMove  Kind = "mouse_move"
	KindTypeText   Kind = "type_text"
	KindNavigate   Kind = "navigate"
	KindSwitchMode Kind = "switch_mode"
	KindDelay      Kind = "delay"
	KindScript     Kind = "script"
	KindSequence   Kind = "sequence"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindOpenURL, KindKeyboard, KindMouseClick, KindMouseMove, KindTypeText,
	KindNavigate, KindSwitchMode, KindDelay, KindScript, KindSequence,
}

// Navigation directions understood by the list selector.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionFirst  = "first"
	DirectionLast   = "last"
	DirectionPlay   = "play"
	DirectionReplay = "replay"
	DirectionShow   = "show"
)

var directions = map[string]bool{
	DirectionUp: true, DirectionDown: true, DirectionFirst: true, DirectionLast: true,
	DirectionPlay: true, DirectionReplay: true, DirectionShow: true,
}

// MaxDelay caps delay actions.
const MaxDelay = 5 * time.Second

var (
	// ErrUnknownKind is returned for descriptors with an unsupported type.
	ErrUnknownKind = errors.New("unknown action type")
	// ErrInvalidDescriptor is returned for descriptors missing required fields.
	ErrInvalidDescriptor = errors.New("invalid action")
)

// Point is a screen position.
type Point struct {
	X, Y int
}

// Descriptor is a validated action. Only the fields of its Kind are set.
type Descriptor struct {
	Kind        Kind
	Description string
	HoldTime    time.Duration
	NextMode    string

	URL           string        // open_url
	MoveToDisplay *int          // open_url
	Keys          []string      // keyboard: pressed in order, released in reverse
	Position      *Point        // mouse_click, mouse_move
	ClickCount    int           // mouse_click, mouse_move
	Text          string        // type_text
	Direction     string        // navigate
	Mode          string        // switch_mode
	Delay         time.Duration // delay
	Source        string        // script
	Actions       []Descriptor  // sequence
}

// Name returns the description or, failing that, the kind.
func (d Descriptor) Name() string {
	if d.Description != "" {
		return d.Description
	}
	return string(d.Kind)
}

type descriptorJSON struct {
	Type          string       `json:"type"`
	Description   string       `json:"description,omitempty"`
	HoldTime      *float64     `json:"hold_time,omitempty"`
	NextMode      string       `json:"next_mode,omitempty"`
	URL           string       `json:"url,omitempty"`
	MoveToDisplay *int         `json:"move_to_display,omitempty"`
	Key           string       `json:"key,omitempty"`
	Keys          []string     `json:"keys,omitempty"`
	Position      []float64    `json:"position,omitempty"`
	ClickCount    *int         `json:"click_count,omitempty"`
	Text          string       `json:"text,omitempty"`
	Direction     string       `json:"direction,omitempty"`
	Mode          string       `json:"mode,omitempty"`
	Seconds       *float64     `json:"seconds,omitempty"`
	Source        string       `json:"source,omitempty"`
	Actions       []Descriptor `json:"actions,omitempty"`
}

// UnmarshalJSON decodes and validates a descriptor.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Descriptor{
		Kind:          Kind(strings.TrimSpace(raw.Type)),
		Description:   raw.Description,
		NextMode:      raw.NextMode,
		URL:           raw.URL,
		MoveToDisplay: raw.MoveToDisplay,
		Text:          raw.Text,
		Direction:     strings.ToLower(strings.TrimSpace(raw.Direction)),
		Mode:          raw.Mode,
		Source:        raw.Source,
		Actions:       raw.Actions,
	}
	if raw.HoldTime != nil {
		out.HoldTime = seconds(*raw.HoldTime)
	}
	if raw.Seconds != nil {
		out.Delay = seconds(*raw.Seconds)
	}

	switch {
	case len(raw.Keys) > 0:
		out.Keys = normalizeKeys(raw.Keys)
	case raw.Key != "":
		out.Keys = normalizeKeys(strings.Split(raw.Key, "+"))
	}

	if raw.Position != nil {
		if len(raw.Position) != 2 {
			return fmt.Errorf("%w: %s: position must be [x, y]", ErrInvalidDescriptor, out.Kind)
		}
		out.Position = &Point{X: int(math.Round(raw.Position[0])), Y: int(math.Round(raw.Position[1]))}
	}

	switch {
	case raw.ClickCount != nil:
		out.ClickCount = *raw.ClickCount
	case out.Kind == KindMouseClick:
		out.ClickCount = 1
	}

	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that the kind is known and its required fields are present.
func (d Descriptor) Validate() error {
	if d.HoldTime < 0 {
		return fmt.Errorf("%w: %s: negative hold_time", ErrInvalidDescriptor, d.Kind)
	}

	switch d.Kind {
	case KindOpenURL:
		if d.URL == "" {
			return fmt.Errorf("%w: open_url: url is required", ErrInvalidDescriptor)
		}
		if d.MoveToDisplay != nil && *d.MoveToDisplay < 0 {
			return fmt.Errorf("%w: open_url: move_to_display must be >= 0", ErrInvalidDescriptor)
		}
	case KindKeyboard:
		if len(d.Keys) == 0 {
			return fmt.Errorf("%w: keyboard: key or keys is required", ErrInvalidDescriptor)
		}
	case KindMouseClick, KindMouseMove:
		if d.Position == nil {
			return fmt.Errorf("%w: %s: position is required", ErrInvalidDescriptor, d.Kind)
		}
		if d.ClickCount < 0 {
			return fmt.Errorf("%w: %s: click_count must be >= 0", ErrInvalidDescriptor, d.Kind)
		}
	case KindTypeText:
		if d.Text == "" {
			return fmt.Errorf("%w: type_text: text is required", ErrInvalidDescriptor)
		}
	case KindNavigate:
		if !directions[d.Direction] {
			return fmt.Errorf("%w: navigate: unknown direction %q", ErrInvalidDescriptor, d.Direction)
		}
	case KindSwitchMode:
		if d.Mode == "" {
			return fmt.Errorf("%w: switch_mode: mode is required", ErrInvalidDescriptor)
		}
	case KindDelay:
		if d.Delay < 0 {
			return fmt.Errorf("%w: delay: seconds must be >= 0", ErrInvalidDescriptor)
		}
	case KindScript:
		if strings.TrimSpace(d.Source) == "" {
			return fmt.Errorf("%w: script: source is required", ErrInvalidDescriptor)
		}
	case KindSequence:
		if len(d.Actions) == 0 {
			return fmt.Errorf("%w: sequence: actions is required", ErrInvalidDescriptor)
		}
		for i, sub := range d.Actions {
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("sequence action %d: %w", i, err)
			}
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrUnknownKind)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
	return nil
}
