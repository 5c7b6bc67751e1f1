// Package actions describes, validates and performs the side effects bound to colors.
package actions

import (
	"context"
)

// Browser opens URLs.
type Browser interface {
	Open(ctx context.Context, url string) error
}

// WindowMover places the focused browser window on a display.
type WindowMover interface {
	MoveToDisplay(ctx context.Context, display int) error
}

// Keyboard injects key presses.
type Keyboard interface {
	// PressChord presses keys in order and releases them in reverse order.
	PressChord(ctx context.Context, keys []string) error
	TypeText(ctx context.Context, text string) error
}

// Pointer injects mouse input.
type Pointer interface {
	MoveTo(ctx context.Context, x, y int) error
	Click(ctx context.Context, count int) error
}

// Navigator moves a list selection.
type Navigator interface {
	Navigate(ctx context.Context, direction string) error
}

// ScriptRunner executes script actions. Scripts act through the Context.
type ScriptRunner interface {
	Run(actx *Context, source string) error
}

// Capabilities are the collaborators available to handlers. Nil members make
// the corresponding actions fail with ErrUnsupported.
type Capabilities struct {
	Browser   Browser
	Windows   WindowMover
	Keyboard  Keyboard
	Pointer   Pointer
	Navigator Navigator
	Scripts   ScriptRunner
}

// Context is handed to handlers for one dispatch.
// It exposes capabilities and lets composites run sub-actions and request mode switches.
type Context struct {
	ctx      context.Context
	caps     *Capabilities
	runSub   func(actx *Context, d Descriptor) error
	nextMode string
	parent   *Context
}

// NewContext creates a dispatch context. runSub executes a nested descriptor.
func NewContext(ctx context.Context, caps *Capabilities, runSub func(actx *Context, d Descriptor) error) *Context {
	if caps == nil {
		caps = &Capabilities{}
	}
	return &Context{ctx: ctx, caps: caps, runSub: runSub}
}

// Ctx returns the Go context for cancellation.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// WithContext returns a view of c bound to ctx, typically a deadline for one
// handler. Mode requests made through the view are recorded on c.
func (c *Context) WithContext(ctx context.Context) *Context {
	return &Context{ctx: ctx, caps: c.caps, runSub: c.runSub, parent: c}
}

// Caps returns the available collaborators.
func (c *Context) Caps() *Capabilities {
	return c.caps
}

// RequestMode records a mode switch; the last request of a dispatch wins.
func (c *Context) RequestMode(name string) {
	if c.parent != nil {
		c.parent.RequestMode(name)
		return
	}
	if name != "" {
		c.nextMode = name
	}
}

// NextMode returns the requested mode, if any.
func (c *Context) NextMode() string {
	if c.parent != nil {
		return c.parent.NextMode()
	}
	return c.nextMode
}

// Run executes a nested descriptor within this dispatch.
func (c *Context) Run(d Descriptor) error {
	if c.runSub == nil {
		return nil
	}
	return c.runSub(c, d)
}
