package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/config"
	"github.com/dokzlo13/chromad/internal/modes"
	"github.com/dokzlo13/chromad/internal/script"
)

// Check validates every mode file in paths.modes_dir, including the Lua
// sources of script actions, and returns the number of invalid modes.
func Check(cfg *config.Config) (int, error) {
	results, err := modes.CheckAll(modes.DirLoader{
		Dir:    cfg.Paths.ModesDir,
		Window: cfg.Controller.SequenceWindow.Duration(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list modes: %w", err)
	}

	bad := 0
	for _, r := range results {
		if err := checkMode(r); err != nil {
			bad++
			log.Error().Err(err).Str("mode", r.Name).Msg("Mode is invalid")
			continue
		}
		log.Info().
			Str("mode", r.Name).
			Int("actions", len(r.Mode.Actions)).
			Int("sequences", len(r.Mode.Sequences)).
			Msg("Mode OK")
	}

	if len(results) == 0 {
		log.Warn().Str("dir", cfg.Paths.ModesDir).Msg("No mode files found")
	}
	return bad, nil
}

func checkMode(r modes.CheckResult) error {
	if r.Err != nil {
		return r.Err
	}
	for label, d := range r.Mode.Actions {
		if err := script.CheckDescriptor(d); err != nil {
			return fmt.Errorf("action for %s: %w", label, err)
		}
	}
	for i, rule := range r.Mode.Sequences {
		if rule.Action == nil {
			continue
		}
		if err := script.CheckDescriptor(*rule.Action); err != nil {
			return fmt.Errorf("sequence %d: %w", i, err)
		}
	}
	return nil
}
