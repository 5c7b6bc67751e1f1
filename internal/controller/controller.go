// Package controller runs the per-tick state machine: it feeds labels into
// the sequence history and the hold debouncer, dispatches the bound actions
// and applies mode switches.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/debounce"
	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/ledger"
	"github.com/dokzlo13/chromad/internal/modes"
	"github.com/dokzlo13/chromad/internal/sequence"
	"github.com/dokzlo13/chromad/internal/source"
)

// DefaultFPS is the tick rate when none is configured.
const DefaultFPS = 30

// ErrRequestQueueFull is returned when mode requests arrive faster than ticks.
var ErrRequestQueueFull = errors.New("mode request queue full")

// Dispatcher performs actions.
type Dispatcher interface {
	DispatchWithSource(ctx context.Context, d actions.Descriptor, source string) (string, error)
}

// ModeLoader activates modes by name.
type ModeLoader interface {
	SetActive(name string) (*modes.Mode, error)
}

// Publisher receives controller events.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Options configures a Controller.
type Options struct {
	FPS              int
	HistoryRetention time.Duration
	// Recorder and Publisher are optional.
	Recorder  actions.Recorder
	Publisher Publisher
}

// Outcome reports what a tick did.
type Outcome struct {
	// Sequence is the index of the matched rule, or -1.
	Sequence int
	// Fired is set when a hold completed and its action was dispatched.
	Fired bool
	// NextMode is the mode switched to, if any.
	NextMode string
}

// Controller owns the hold state, sequence history and active mode. Tick and
// SetMode must only be called from one goroutine; Run is that goroutine.
// Snapshot and RequestMode are safe from anywhere.
type Controller struct {
	dispatcher Dispatcher
	modes      ModeLoader
	recorder   actions.Recorder
	publisher  Publisher
	fps        int

	mode      *modes.Mode
	history   *sequence.History
	debouncer *debounce.Debouncer
	label     color.Label
	ticks     uint64

	requests chan string

	mu     sync.RWMutex
	status Status
}

// New creates a controller with an empty, unnamed mode. Call SetMode before Run.
func New(dispatcher Dispatcher, loader ModeLoader, opts Options) *Controller {
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	c := &Controller{
		dispatcher: dispatcher,
		modes:      loader,
		recorder:   opts.Recorder,
		publisher:  opts.Publisher,
		fps:        fps,
		mode:       modes.Empty(""),
		history:    sequence.NewHistory(opts.HistoryRetention),
		debouncer:  debounce.New(),
		requests:   make(chan string, 8),
	}
	c.updateStatus(time.Time{})
	return c
}

// Mode returns the active mode.
func (c *Controller) Mode() *modes.Mode {
	return c.mode
}

// SetMode activates name and resets the hold state and sequence history.
// A mode that fails to load is replaced by an empty one.
func (c *Controller) SetMode(name string) {
	from := c.mode.Name
	m, err := c.modes.SetActive(name)
	if m == nil {
		m = modes.Empty(name)
	}
	c.mode = m
	c.history.Clear()
	c.debouncer.Reset()

	log.Info().Str("from", from).Str("to", name).Msg("Mode switched")

	payload := map[string]any{"from": from, "to": name}
	if err != nil {
		payload["error"] = err.Error()
	}
	c.record(ledger.EventModeSwitched, "mode:"+name, payload)
	c.publish(eventbus.EventTypeMode, payload)
	c.updateStatus(time.Now())
}

// RequestMode asks the loop to switch modes at its next tick.
func (c *Controller) RequestMode(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty mode name", modes.ErrInvalidMode)
	}
	select {
	case c.requests <- name:
		return nil
	default:
		return ErrRequestQueueFull
	}
}

func (c *Controller) drainRequests() {
	for {
		select {
		case name := <-c.requests:
			log.Info().Str("mode", name).Msg("Applying requested mode switch")
			c.SetMode(name)
		default:
			return
		}
	}
}

// Tick processes the label observed at now. A sequence match takes priority:
// when one fires, the hold state is reset and no hold action runs on the same tick.
func (c *Controller) Tick(ctx context.Context, label color.Label, now time.Time) Outcome {
	c.drainRequests()
	c.ticks++
	out := Outcome{Sequence: -1}

	if label != c.label {
		log.Debug().Str("label", label.String()).Str("previous", c.label.String()).Msg("Label changed")
		c.publish(eventbus.EventTypeLabel, map[string]any{"label": string(label), "previous": string(c.label)})
		c.label = label
	}

	c.history.Record(label, now)

	if idx, ok := c.history.TryMatch(c.mode.Rules()); ok {
		out.Sequence = idx
		c.debouncer.Reset()
		out.NextMode = c.onSequence(ctx, idx)
	} else if c.debouncer.Update(label, now, c.mode.Hold) {
		out.Fired = true
		out.NextMode = c.onHold(ctx, label)
	}

	if out.NextMode != "" {
		c.SetMode(out.NextMode)
	}
	c.updateStatus(now)
	return out
}

func (c *Controller) onSequence(ctx context.Context, idx int) string {
	rule := c.mode.Sequences[idx]
	pattern := make([]string, len(rule.Pattern))
	for i, l := range rule.Pattern {
		pattern[i] = string(l)
	}

	log.Info().
		Int("rule", idx).
		Strs("pattern", pattern).
		Str("description", rule.Description).
		Str("mode", c.mode.Name).
		Msg("Sequence matched")

	payload := map[string]any{"rule": idx, "pattern": pattern, "mode": c.mode.Name}
	if rule.Description != "" {
		payload["description"] = rule.Description
	}
	src := "sequence:" + strconv.Itoa(idx)
	c.record(ledger.EventSequenceMatched, src, payload)
	c.publish(eventbus.EventTypeSequence, payload)

	if rule.Action == nil {
		return ""
	}
	return c.dispatch(ctx, *rule.Action, src)
}

func (c *Controller) onHold(ctx context.Context, label color.Label) string {
	d, ok := c.mode.Action(label)
	if !ok {
		return ""
	}
	return c.dispatch(ctx, d, "label:"+string(label))
}

func (c *Controller) dispatch(ctx context.Context, d actions.Descriptor, src string) string {
	next, err := c.dispatcher.DispatchWithSource(ctx, d, src)

	data := map[string]any{
		"action": d.Name(),
		"kind":   string(d.Kind),
		"source": src,
	}
	if next != "" {
		data["next_mode"] = next
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.publish(eventbus.EventTypeDispatch, data)
	return next
}

// Run ticks at the configured rate until ctx is cancelled or src fails.
// Cancellation returns nil; a source error is returned wrapped.
func (c *Controller) Run(ctx context.Context, src source.Source) error {
	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	log.Info().Int("fps", c.fps).Str("mode", c.mode.Name).Msg("Controller loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Controller loop stopped")
			return nil
		case <-ticker.C:
		}

		label, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("label source failed: %w", err)
		}
		c.Tick(ctx, label, time.Now())
	}
}

func (c *Controller) record(eventType ledger.EventType, src string, payload map[string]any) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Append(eventType, "", src, payload); err != nil {
		log.Error().Err(err).Str("event", string(eventType)).Msg("Failed to record event")
	}
}

func (c *Controller) publish(t eventbus.EventType, data map[string]any) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(eventbus.Event{Type: t, Data: data})
}
