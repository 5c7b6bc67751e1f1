package input

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

// DefaultTypeDelay is the per-character delay used when typing text.
const DefaultTypeDelay = 50 * time.Millisecond

var specialKeys = map[string]string{
	"space":     "space",
	"enter":     "Return",
	"return":    "Return",
	"esc":       "Escape",
	"escape":    "Escape",
	"shift":     "shift",
	"ctrl":      "ctrl",
	"control":   "ctrl",
	"alt":       "alt",
	"tab":       "Tab",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"cmd":       "super",
	"super":     "super",
	"win":       "super",
}

// Keysym maps a configured key name to an X keysym. Function keys are
// accepted as f1..f24; single characters pass through unchanged.
func Keysym(key string) string {
	lower := strings.ToLower(strings.TrimSpace(key))
	if sym, ok := specialKeys[lower]; ok {
		return sym
	}
	if len(lower) > 1 && lower[0] == 'f' {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + lower[1:]
		}
	}
	return strings.TrimSpace(key)
}

// Xdotool implements keyboard and pointer injection with xdotool.
type Xdotool struct {
	tool      string
	runner    Runner
	typeDelay time.Duration
}

// NewXdotool creates an injector. An empty tool selects "xdotool"; a nil runner executes commands.
func NewXdotool(tool string, runner Runner) *Xdotool {
	if tool == "" {
		tool = "xdotool"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Xdotool{tool: tool, runner: runner, typeDelay: DefaultTypeDelay}
}

// PressChord presses keys in order and releases them in reverse order.
// Keys already pressed are released even if a later press fails.
func (x *Xdotool) PressChord(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return errors.New("empty key chord")
	}

	syms := make([]string, len(keys))
	for i, k := range keys {
		syms[i] = Keysym(k)
	}

	var errs []error
	pressed := 0
	for _, sym := range syms {
		if err := x.runner.Run(ctx, x.tool, "keydown", sym); err != nil {
			errs = append(errs, err)
			break
		}
		pressed++
	}
	for i := pressed - 1; i >= 0; i-- {
		// Releases must happen even when ctx is already done.
		if err := x.runner.Run(context.WithoutCancel(ctx), x.tool, "keyup", syms[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TypeText types text with a short per-character delay.
func (x *Xdotool) TypeText(ctx context.Context, text string) error {
	delay := strconv.FormatInt(x.typeDelay.Milliseconds(), 10)
	return x.runner.Run(ctx, x.tool, "type", "--delay", delay, "--", text)
}

// MoveTo moves the pointer to absolute screen coordinates.
func (x *Xdotool) MoveTo(ctx context.Context, px, py int) error {
	return x.runner.Run(ctx, x.tool, "mousemove", strconv.Itoa(px), strconv.Itoa(py))
}

// Click clicks the left button count times at the current position.
func (x *Xdotool) Click(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	return x.runner.Run(ctx, x.tool, "click", "--repeat", strconv.Itoa(count), "1")
}

// BoundsFunc returns the bounds of display i.
type BoundsFunc func(i int) (image.Rectangle, bool)

// WindowMover moves the active window onto another display.
type WindowMover struct {
	x      *Xdotool
	bounds BoundsFunc
}

// NewWindowMover creates a mover that uses bounds to locate displays.
func NewWindowMover(x *Xdotool, bounds BoundsFunc) *WindowMover {
	return &WindowMover{x: x, bounds: bounds}
}

// MoveToDisplay moves the active window to the top-left corner of display i.
func (m *WindowMover) MoveToDisplay(ctx context.Context, i int) error {
	r, ok := m.bounds(i)
	if !ok {
		return fmt.Errorf("display %d not available", i)
	}
	return m.x.runner.Run(ctx, m.x.tool,
		"getactivewindow", "windowmove", strconv.Itoa(r.Min.X), strconv.Itoa(r.Min.Y))
}
