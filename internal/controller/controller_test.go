package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/debounce"
	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/ledger"
	"github.com/dokzlo13/chromad/internal/modes"
	"github.com/dokzlo13/chromad/internal/vision"
)

type fakeIO struct {
	opened    []string
	navigated []string
}

func (f *fakeIO) Open(_ context.Context, url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func (f *fakeIO) Navigate(_ context.Context, dir string) error {
	f.navigated = append(f.navigated, dir)
	return nil
}

type fakeRecorder struct {
	events []ledger.EventType
}

func (r *fakeRecorder) Append(t ledger.EventType, _, _ string, _ map[string]any) error {
	r.events = append(r.events, t)
	return nil
}

func (r *fakeRecorder) count(t ledger.EventType) int {
	n := 0
	for _, e := range r.events {
		if e == t {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePublisher) Publish(e eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

const mainMode = `{
	"actions": {
		"red": {"type": "open_url", "url": "https://example.com", "hold_time": 1.0, "next_mode": "select"}
	}
}`

const selectMode = `{
	"actions": {
		"red": {"type": "navigate", "direction": "down", "hold_time": 0.5},
		"blue": {"type": "switch_mode", "mode": "main"}
	},
	"sequences": [
		{"pattern": ["red", "yellow"], "time_window": 2.5, "action": {"type": "navigate", "direction": "play"}}
	]
}`

// greedyMode binds red with zero hold and a [red, red] sequence, so both
// trigger on the second red tick.
const greedyMode = `{
	"actions": {
		"red": {"type": "navigate", "direction": "down", "hold_time": 0}
	},
	"sequences": [
		{"pattern": ["red", "red"], "action": {"type": "navigate", "direction": "up"}}
	]
}`

type harness struct {
	io   *fakeIO
	rec  *fakeRecorder
	pub  *fakePublisher
	ctrl *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	io := &fakeIO{}
	reg := actions.NewRegistry()
	if err := actions.RegisterBuiltins(reg, actions.BuiltinOptions{}); err != nil {
		t.Fatal(err)
	}
	disp := actions.NewDispatcher(reg, &actions.Capabilities{Browser: io, Navigator: io}, nil, actions.Options{})

	loader := modes.MapLoader{"main": mainMode, "select": selectMode, "greedy": greedyMode}
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	ctrl := New(disp, modes.NewRegistry(loader), Options{Recorder: rec, Publisher: pub})
	return &harness{io: io, rec: rec, pub: pub, ctrl: ctrl}
}

func at(t0 time.Time, d time.Duration) time.Time { return t0.Add(d) }

func TestScenario_HoldOpensURLAndSwitchesMode(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("main")
	ctx := context.Background()

	t0 := time.Unix(1000, 0)
	step := time.Second / 30
	switches := 0
	for i := 0; time.Duration(i)*step <= 1200*time.Millisecond; i++ {
		out := h.ctrl.Tick(ctx, "red", at(t0, time.Duration(i)*step))
		if out.NextMode != "" {
			switches++
			if out.NextMode != "select" {
				t.Errorf("switched to %q, want select", out.NextMode)
			}
			if n := len(h.ctrl.Snapshot().History); n != 0 {
				t.Errorf("history has %d entries after the switch", n)
			}
			if ph := h.ctrl.Snapshot().Phase; ph != debounce.PhaseIdle {
				t.Errorf("phase = %s after the switch", ph)
			}
		}
	}

	if len(h.io.opened) != 1 || h.io.opened[0] != "https://example.com" {
		t.Errorf("opened = %v, want exactly one open_url", h.io.opened)
	}
	if switches != 1 {
		t.Errorf("switches = %d, want 1", switches)
	}
	if h.ctrl.Mode().Name != "select" {
		t.Errorf("mode = %q, want select", h.ctrl.Mode().Name)
	}
	if len(h.io.navigated) != 0 {
		t.Errorf("select mode fired early: %v", h.io.navigated)
	}
}

func TestSequenceMatchDispatchesAndClears(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("select")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	h.ctrl.Tick(ctx, "red", t0)
	out := h.ctrl.Tick(ctx, "yellow", at(t0, time.Second))
	if out.Sequence != 0 {
		t.Fatalf("sequence = %d, want 0", out.Sequence)
	}
	if len(h.io.navigated) != 1 || h.io.navigated[0] != actions.DirectionPlay {
		t.Errorf("navigated = %v", h.io.navigated)
	}
	if n := len(h.ctrl.Snapshot().History); n != 0 {
		t.Errorf("history not cleared: %d", n)
	}
	if h.rec.count(ledger.EventSequenceMatched) != 1 {
		t.Errorf("sequence_matched recorded %d times", h.rec.count(ledger.EventSequenceMatched))
	}
}

func TestSequenceOutsideWindowDoesNotMatch(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("select")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	h.ctrl.Tick(ctx, "red", t0)
	if out := h.ctrl.Tick(ctx, "yellow", at(t0, 3*time.Second)); out.Sequence != -1 {
		t.Errorf("matched outside the window")
	}
}

func TestSequenceTakesPriorityOverHold(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("greedy")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	h.ctrl.Tick(ctx, "red", t0)
	out := h.ctrl.Tick(ctx, "red", at(t0, 100*time.Millisecond))
	if out.Sequence != 0 || out.Fired {
		t.Fatalf("outcome = %+v, want sequence only", out)
	}
	if len(h.io.navigated) != 1 || h.io.navigated[0] != actions.DirectionUp {
		t.Errorf("navigated = %v, want only the sequence action", h.io.navigated)
	}
}

func TestModeSwitchResetsContext(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("select")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	h.ctrl.Tick(ctx, "red", t0)
	h.ctrl.Tick(ctx, "red", at(t0, 100*time.Millisecond))
	if s := h.ctrl.Snapshot(); s.Phase != debounce.PhaseHolding || len(s.History) != 2 {
		t.Fatalf("precondition: %+v", s)
	}

	if err := h.ctrl.RequestMode("main"); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Tick(ctx, color.None, at(t0, 200*time.Millisecond))

	s := h.ctrl.Snapshot()
	if s.Mode != "main" || s.Phase != debounce.PhaseIdle || len(s.History) != 0 {
		t.Errorf("after switch: %+v", s)
	}
	if h.rec.count(ledger.EventModeSwitched) != 2 {
		t.Errorf("mode_switched recorded %d times, want 2", h.rec.count(ledger.EventModeSwitched))
	}

	// A label held across the switch has to be held again from scratch.
	h.ctrl.Tick(ctx, "red", at(t0, 300*time.Millisecond))
	h.ctrl.Tick(ctx, "red", at(t0, 900*time.Millisecond))
	if len(h.io.opened) != 0 {
		t.Errorf("hold carried across the switch: %v", h.io.opened)
	}
}

func TestMissingModeIsEmpty(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("nope")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	for i := 0; i < 100; i++ {
		if out := h.ctrl.Tick(ctx, "red", at(t0, time.Duration(i)*100*time.Millisecond)); out.Fired || out.Sequence != -1 {
			t.Fatalf("empty mode produced %+v", out)
		}
	}
	if h.ctrl.Mode().Name != "nope" || len(h.ctrl.Mode().Actions) != 0 {
		t.Errorf("mode = %+v", h.ctrl.Mode())
	}
}

func TestSwitchModeAction(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMode("select")
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	h.ctrl.Tick(ctx, "blue", t0)
	out := h.ctrl.Tick(ctx, "blue", at(t0, 50*time.Millisecond))
	if !out.Fired || out.NextMode != "main" || h.ctrl.Mode().Name != "main" {
		t.Errorf("outcome = %+v, mode = %s", out, h.ctrl.Mode().Name)
	}
}

func TestRequestMode(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.RequestMode(""); !errors.Is(err, modes.ErrInvalidMode) {
		t.Errorf("err = %v", err)
	}
	for i := 0; i < cap(h.ctrl.requests); i++ {
		if err := h.ctrl.RequestMode("main"); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.ctrl.RequestMode("main"); !errors.Is(err, ErrRequestQueueFull) {
		t.Errorf("err = %v, want ErrRequestQueueFull", err)
	}
}

func TestLabelEventsOnChangeOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	for i, l := range []color.Label{"red", "red", "red", color.None, "blue", "blue"} {
		h.ctrl.Tick(ctx, l, at(t0, time.Duration(i)*time.Second))
	}

	n := 0
	for _, e := range h.pub.events {
		if e.Type == eventbus.EventTypeLabel {
			n++
		}
	}
	if n != 3 {
		t.Errorf("label events = %d, want 3", n)
	}
}

type scriptedSource struct {
	labels []color.Label
}

func (s *scriptedSource) Next(context.Context) (color.Label, error) {
	if len(s.labels) == 0 {
		return color.None, vision.ErrSourceClosed
	}
	l := s.labels[0]
	s.labels = s.labels[1:]
	return l, nil
}

func (s *scriptedSource) Close() error { return nil }

func TestRun(t *testing.T) {
	t.Run("source error is returned", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.fps = 1000
		err := h.ctrl.Run(context.Background(), &scriptedSource{labels: []color.Label{"red", "red"}})
		if !errors.Is(err, vision.ErrSourceClosed) {
			t.Errorf("err = %v, want ErrSourceClosed", err)
		}
		if s := h.ctrl.Snapshot(); s.Ticks != 2 || s.Label != "red" {
			t.Errorf("status = %+v", s)
		}
	})

	t.Run("cancellation returns nil", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := h.ctrl.Run(ctx, &scriptedSource{}); err != nil {
			t.Errorf("err = %v", err)
		}
	})
}
