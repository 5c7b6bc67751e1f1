package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/config"
)

// App is the main application container that manages all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	exitErr error
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config, opts Options) (*App, error) {
	services, err := NewServices(cfg, opts)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Start initializes and starts all services.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	// Called when the controller loop ends; nil means a clean stop such as "quit" in simulation
	onExit := func(err error) {
		if err != nil {
			log.Error().Err(err).Msg("Fatal error, initiating shutdown")
			a.mu.Lock()
			a.exitErr = err
			a.mu.Unlock()
		} else {
			log.Info().Msg("Controller stopped, initiating shutdown")
		}
		a.cancel()
	}

	if err := a.services.Start(a.ctx, onExit); err != nil {
		return err
	}

	log.Info().Msg("chromad started")
	return nil
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// Err returns the error that ended the controller loop, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitErr
}

// ResetState clears the persisted mode and watch list state.
// This is useful for resetting state on startup with --reset-state flag.
func (a *App) ResetState() error {
	if a.services != nil {
		return a.services.ClearState()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
