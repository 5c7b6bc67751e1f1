package modes

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds the active mode. Loads that fail leave an empty mode active.
type Registry struct {
	loader Loader

	mu     sync.RWMutex
	active *Mode
}

// NewRegistry creates a registry with an empty, unnamed active mode.
func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader, active: Empty("")}
}

// Active returns the active mode.
func (r *Registry) Active() *Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Load returns the named mode, or an empty mode and the load error.
func (r *Registry) Load(name string) (*Mode, error) {
	m, err := r.loader.Load(name)
	if err == nil {
		return m, nil
	}

	if errors.Is(err, ErrModeNotFound) {
		log.Warn().Str("mode", name).Msg("Mode config not found, using empty mode")
	} else {
		log.Error().Err(err).Str("mode", name).Msg("Failed to load mode, using empty mode")
	}
	return Empty(name), err
}

// SetActive loads name and makes it the active mode. The returned error is
// informational: the registry always switches, to an empty mode on failure.
func (r *Registry) SetActive(name string) (*Mode, error) {
	m, err := r.Load(name)

	r.mu.Lock()
	r.active = m
	r.mu.Unlock()

	log.Info().
		Str("mode", name).
		Int("actions", len(m.Actions)).
		Int("sequences", len(m.Sequences)).
		Msg("Mode activated")
	return m, err
}
