package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Global is the JSON settings file shared with the calibration tool.
type Global struct {
	ROI           []int `json:"roi,omitempty"`
	FPS           *int  `json:"fps,omitempty"`
	UseCalibrated *bool `json:"use_calibrated,omitempty"`
}

// ApplyGlobal overlays the JSON global settings at path. A missing file is not an error.
func (cfg *Config) ApplyGlobal(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("Global settings not found, using YAML values")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read global settings: %w", err)
	}

	var g Global
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to parse global settings %s: %w", path, err)
	}

	if g.ROI != nil {
		cfg.Controller.ROI = g.ROI
	}
	if g.FPS != nil && *g.FPS > 0 {
		cfg.Controller.FPS = *g.FPS
	}
	if g.UseCalibrated != nil {
		cfg.Controller.UseCalibrated = *g.UseCalibrated
	}
	return nil
}
