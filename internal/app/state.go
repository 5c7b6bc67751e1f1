package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/kv"
)

const (
	controllerBucket = "controller"
	watchlistBucket  = "watchlist"

	keyActiveMode = "active_mode"
)

// ModeState persists the active mode so a restart can resume it.
type ModeState struct {
	bucket kv.Bucket
}

// NewModeState creates a mode store backed by bucket.
func NewModeState(bucket kv.Bucket) *ModeState {
	return &ModeState{bucket: bucket}
}

// Track stores every mode switch published on bus.
func (m *ModeState) Track(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeMode, func(event eventbus.Event) {
		to, _ := event.Data["to"].(string)
		if to == "" {
			return
		}
		if err := m.bucket.Store(keyActiveMode, to, nil); err != nil {
			log.Warn().Err(err).Str("mode", to).Msg("Failed to persist active mode")
		}
	})
}

// Initial returns the mode to start in: the stored one when resume is set
// and a mode was stored, otherwise fallback.
func (m *ModeState) Initial(fallback string, resume bool) string {
	if !resume {
		return fallback
	}

	var stored string
	found, err := m.bucket.Load(keyActiveMode, &stored)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read stored mode")
		return fallback
	}
	if !found || stored == "" {
		return fallback
	}

	log.Info().Str("mode", stored).Msg("Resuming stored mode")
	return stored
}
