package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnsupported is returned when an action needs a capability that is not configured.
var ErrUnsupported = errors.New("capability not available")

// BuiltinOptions tunes the built-in handlers.
type BuiltinOptions struct {
	// OpenSettle is the pause after opening a URL, giving the browser time to
	// come up before window placement or a mode switch.
	OpenSettle time.Duration
}

// RegisterBuiltins registers a handler for every Kind.
func RegisterBuiltins(r *Registry, opts BuiltinOptions) error {
	handlers := map[Kind]func(actx *Context, d Descriptor) error{
		KindOpenURL: func(actx *Context, d Descriptor) error {
			return openURL(actx, d, opts.OpenSettle)
		},
		KindKeyboard:   pressKeys,
		KindMouseClick: mouse,
		KindMouseMove:  mouse,
		KindTypeText:   typeText,
		KindNavigate:   navigate,
		KindSwitchMode: func(actx *Context, d Descriptor) error {
			actx.RequestMode(d.Mode)
			return nil
		},
		KindDelay: func(actx *Context, d Descriptor) error {
			return sleep(actx.Ctx(), min(d.Delay, MaxDelay))
		},
		KindScript:   runScript,
		KindSequence: runSequence,
	}

	for _, kind := range Kinds {
		if err := r.RegisterSimple(kind, handlers[kind]); err != nil {
			return err
		}
	}
	return nil
}

func openURL(actx *Context, d Descriptor, settle time.Duration) error {
	b := actx.Caps().Browser
	if b == nil {
		return fmt.Errorf("%w: browser", ErrUnsupported)
	}
	if err := b.Open(actx.Ctx(), d.URL); err != nil {
		return fmt.Errorf("failed to open %s: %w", d.URL, err)
	}
	if err := sleep(actx.Ctx(), settle); err != nil {
		return err
	}

	if d.MoveToDisplay == nil {
		return nil
	}
	w := actx.Caps().Windows
	if w == nil {
		return fmt.Errorf("%w: window mover", ErrUnsupported)
	}
	if err := w.MoveToDisplay(actx.Ctx(), *d.MoveToDisplay); err != nil {
		return fmt.Errorf("failed to move window to display %d: %w", *d.MoveToDisplay, err)
	}
	return nil
}

func pressKeys(actx *Context, d Descriptor) error {
	kb := actx.Caps().Keyboard
	if kb == nil {
		return fmt.Errorf("%w: keyboard", ErrUnsupported)
	}
	return kb.PressChord(actx.Ctx(), d.Keys)
}

func typeText(actx *Context, d Descriptor) error {
	kb := actx.Caps().Keyboard
	if kb == nil {
		return fmt.Errorf("%w: keyboard", ErrUnsupported)
	}
	return kb.TypeText(actx.Ctx(), d.Text)
}

func mouse(actx *Context, d Descriptor) error {
	p := actx.Caps().Pointer
	if p == nil {
		return fmt.Errorf("%w: pointer", ErrUnsupported)
	}
	if err := p.MoveTo(actx.Ctx(), d.Position.X, d.Position.Y); err != nil {
		return err
	}
	if d.ClickCount > 0 {
		return p.Click(actx.Ctx(), d.ClickCount)
	}
	return nil
}

func navigate(actx *Context, d Descriptor) error {
	n := actx.Caps().Navigator
	if n == nil {
		return fmt.Errorf("%w: navigator", ErrUnsupported)
	}
	return n.Navigate(actx.Ctx(), d.Direction)
}

func runScript(actx *Context, d Descriptor) error {
	s := actx.Caps().Scripts
	if s == nil {
		return fmt.Errorf("%w: scripts", ErrUnsupported)
	}
	return s.Run(actx, d.Source)
}

// runSequence runs every sub-action even when some fail and reports the failures together.
func runSequence(actx *Context, d Descriptor) error {
	var errs []error
	for i, sub := range d.Actions {
		if err := actx.Run(sub); err != nil {
			log.Warn().Err(err).
				Int("step", i).
				Str("action", sub.Name()).
				Msg("Sequence step failed, continuing")
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, sub.Kind, err))
		}
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
