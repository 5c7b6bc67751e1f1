// Package input injects keyboard and pointer events by driving an external
// tool such as xdotool.
package input

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWaitDelay bounds how long a finished command's output pipes are
// drained before Run gives up on them.
const DefaultWaitDelay = 500 * time.Millisecond

// Runner executes one tool invocation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WaitDelay limits the wait for pipes held open by processes the tool
	// left running, such as a browser started by xdg-open. Zero selects
	// DefaultWaitDelay.
	WaitDelay time.Duration
}

// Run executes name with args and reports failures with the tool's output.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	output, err := cmd.CombinedOutput()
	if errors.Is(err, exec.ErrWaitDelay) {
		log.Debug().Str("tool", name).Msg("Command exited with children still holding its output")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s failed: %w, output: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

// LogRunner only logs the commands it would run. Used for simulation and dry runs.
type LogRunner struct{}

// Run logs the invocation.
func (LogRunner) Run(_ context.Context, name string, args ...string) error {
	log.Info().Str("tool", name).Strs("args", args).Msg("Input (dry run)")
	return nil
}
