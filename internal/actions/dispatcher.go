package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/chromad/internal/ledger"
)

// ErrRateLimited is returned when a dispatch found no rate-limit token available.
var ErrRateLimited = errors.New("dispatch rate limited")

// Recorder persists dispatch outcomes.
type Recorder interface {
	Append(eventType ledger.EventType, dispatchID, source string, payload map[string]any) error
}

// Options configures a Dispatcher.
type Options struct {
	// RateLimitRPS bounds top-level dispatches per second. Zero disables limiting.
	// Dispatches over the limit are dropped, never delayed.
	RateLimitRPS float64
}

// Dispatcher performs descriptors through the registered handlers.
// Failures never propagate past a dispatch: they are logged, recorded and
// returned for information only.
type Dispatcher struct {
	registry *Registry
	caps     *Capabilities
	recorder Recorder
	limiter  *rate.Limiter
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(registry *Registry, caps *Capabilities, recorder Recorder, opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		caps:     caps,
		recorder: recorder,
	}
	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return d
}

// Dispatch performs d and returns the mode to switch to, if any.
func (d *Dispatcher) Dispatch(ctx context.Context, desc Descriptor) (string, error) {
	return d.DispatchWithSource(ctx, desc, "")
}

// DispatchWithSource is like Dispatch but tags logs and ledger records with
// the trigger, e.g. "label:red" or "sequence:0".
//
// The descriptor's own next_mode takes precedence; otherwise the last mode
// requested by a sub-action or script is returned. Mode requests stand even
// when the side effect failed.
func (d *Dispatcher) DispatchWithSource(ctx context.Context, desc Descriptor, source string) (string, error) {
	id := uuid.NewString()

	if d.limiter != nil && !d.limiter.Allow() {
		err := fmt.Errorf("%w: limit %.1f/s", ErrRateLimited, float64(d.limiter.Limit()))
		log.Warn().Str("action", desc.Name()).Str("source", source).Msg("Dispatch rate limited, dropping action")
		d.record(ledger.EventActionFailed, id, source, desc, "", 0, err)
		return "", err
	}

	start := time.Now()
	actx := NewContext(ctx, d.caps, d.run)
	err := d.run(actx, desc)
	next := actx.NextMode()
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).
			Str("dispatch_id", id).
			Str("action", desc.Name()).
			Str("kind", string(desc.Kind)).
			Str("source", source).
			Msg("Action failed")
		d.record(ledger.EventActionFailed, id, source, desc, next, elapsed, err)
		return next, err
	}

	log.Info().
		Str("dispatch_id", id).
		Str("action", desc.Name()).
		Str("kind", string(desc.Kind)).
		Str("source", source).
		Str("next_mode", next).
		Dur("took", elapsed).
		Msg("Action dispatched")
	d.record(ledger.EventActionDispatched, id, source, desc, next, elapsed, nil)
	return next, nil
}

// run executes one descriptor, recovering handler panics.
func (d *Dispatcher) run(actx *Context, desc Descriptor) (err error) {
	defer actx.RequestMode(desc.NextMode)

	h, ok := d.registry.Get(desc.Kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, desc.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("kind", string(desc.Kind)).Msg("Action handler panicked")
			err = fmt.Errorf("%s handler panicked: %v", desc.Kind, r)
		}
	}()

	log.Debug().Str("action", desc.Name()).Str("kind", string(desc.Kind)).Msg("Executing action")
	return h.Execute(actx, desc)
}

func (d *Dispatcher) record(eventType ledger.EventType, id, source string, desc Descriptor, next string, took time.Duration, err error) {
	if d.recorder == nil {
		return
	}
	payload := map[string]any{
		"kind":    string(desc.Kind),
		"action":  desc.Name(),
		"took_ms": took.Milliseconds(),
	}
	if next != "" {
		payload["next_mode"] = next
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	if rerr := d.recorder.Append(eventType, id, source, payload); rerr != nil {
		log.Error().Err(rerr).Str("dispatch_id", id).Msg("Failed to record dispatch")
	}
}
