// Package script runs Lua snippets bound to the script action type.
//
// Every run gets a fresh VM with the following modules preloaded:
//
//	ctl  drives the input and navigation collaborators of the current dispatch
//	log  structured logging
//	kv   named key/value buckets that survive between runs
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/kv"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 5 * time.Second

// Runner implements actions.ScriptRunner.
type Runner struct {
	kv      *kv.Manager
	timeout time.Duration
}

// NewRunner creates a script runner. manager may be nil, which disables the kv
// module. A non-positive timeout selects DefaultTimeout.
func NewRunner(manager *kv.Manager, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{kv: manager, timeout: timeout}
}

// Run executes source within the dispatch described by actx. The VM and every
// ctl call are cancelled once the run exceeds the runner's timeout.
func (r *Runner) Run(actx *actions.Context, source string) error {
	ctx, cancel := context.WithTimeout(actx.Ctx(), r.timeout)
	defer cancel()
	actx = actx.WithContext(ctx)

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	L.PreloadModule("ctl", NewCtlModule(actx).Loader)
	L.PreloadModule("log", NewLogModule().Loader)
	if r.kv != nil {
		L.PreloadModule("kv", NewKVModule(r.kv).Loader)
	}

	if err := L.DoString(source); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("script timed out after %v: %w", r.timeout, ctx.Err())
		}
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}

// Check parses source without running it.
func Check(source string) error {
	if _, err := parse.Parse(strings.NewReader(source), "<script>"); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	return nil
}

// CheckDescriptor parses every script reachable from d.
func CheckDescriptor(d actions.Descriptor) error {
	if d.Kind == actions.KindScript {
		if err := Check(d.Source); err != nil {
			return err
		}
	}
	for _, sub := range d.Actions {
		if err := CheckDescriptor(sub); err != nil {
			return err
		}
	}
	return nil
}
