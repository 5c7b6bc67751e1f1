package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/browser"
	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/config"
	"github.com/dokzlo13/chromad/internal/controller"
	"github.com/dokzlo13/chromad/internal/db"
	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/input"
	"github.com/dokzlo13/chromad/internal/kv"
	"github.com/dokzlo13/chromad/internal/ledger"
	"github.com/dokzlo13/chromad/internal/modes"
	"github.com/dokzlo13/chromad/internal/script"
	"github.com/dokzlo13/chromad/internal/source"
	"github.com/dokzlo13/chromad/internal/status"
	"github.com/dokzlo13/chromad/internal/vision"
	"github.com/dokzlo13/chromad/internal/vision/opencv"
	"github.com/dokzlo13/chromad/internal/watchlist"
)

// Options adjusts how services are built from the configuration.
type Options struct {
	// Simulate reads labels from Stdin instead of the configured source.
	Simulate bool
	Stdin    io.Reader
}

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg  *config.Config
	opts Options

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	KV     *kv.Manager
	Bus    *eventbus.Bus

	// Detection
	Profiles   *color.ProfileSet
	Classifier *color.Classifier

	// Action system
	Registry   *actions.Registry
	Dispatcher *actions.Dispatcher
	Watchlist  *watchlist.List
	Modes      *modes.Registry

	Controller *controller.Controller
	Status     *status.Server

	state   *ModeState
	source  source.Source
	closers []io.Closer
	wg      sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, opts Options) (*Services, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	s := &Services{cfg: cfg, opts: opts}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.KV = kv.NewManager(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)
	s.state = NewModeState(s.KV.Bucket(controllerBucket, true))

	// Color profiles and classifier
	profiles, origin := color.ResolveProfiles(cfg.Controller.UseCalibrated, cfg.Paths.Calibration, cfg.Paths.ColorsDir)
	s.Profiles = profiles
	var counter color.Counter = color.NativeCounter{}
	if cfg.Source.Backend == config.BackendOpenCV {
		if opencv.Available {
			counter = opencv.Counter{}
		} else {
			log.Warn().Msg("OpenCV backend requested but not compiled in, using native counter")
		}
	}
	s.Classifier = color.NewClassifier(counter, cfg.Controller.MinCoverage)
	log.Info().
		Str("profiles", origin).
		Int("colors", profiles.Len()).
		Float64("min_coverage", cfg.Controller.MinCoverage).
		Str("backend", cfg.Source.Backend).
		Msg("Color classifier ready")

	// Side-effect collaborators
	var runner input.Runner = input.ExecRunner{}
	if cfg.Dispatch.DryRun {
		runner = input.LogRunner{}
	}
	xdo := input.NewXdotool(cfg.Dispatch.InputTool, runner)

	var opener actions.Browser
	switch cfg.Dispatch.Browser {
	case config.BrowserRod:
		rod := browser.NewRodOpener(browser.RodConfig{RemoteURL: cfg.Dispatch.BrowserURL})
		s.closers = append(s.closers, rod)
		opener = rod
	default:
		opener = browser.NewSystemOpener(runner)
	}

	items, err := watchlist.Load(cfg.Paths.Watchlist)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load watch list, using sample data")
		items = watchlist.SampleItems()
	}
	s.Watchlist = watchlist.New(items, opener, s.KV.Bucket(watchlistBucket, true))

	caps := &actions.Capabilities{
		Browser:   opener,
		Windows:   input.NewWindowMover(xdo, vision.DisplayBounds),
		Keyboard:  xdo,
		Pointer:   xdo,
		Navigator: s.Watchlist,
		Scripts:   script.NewRunner(s.KV, cfg.Dispatch.ScriptTimeout.Duration()),
	}

	// Action registry and dispatcher
	s.Registry = actions.NewRegistry()
	if err := actions.RegisterBuiltins(s.Registry, actions.BuiltinOptions{OpenSettle: cfg.Dispatch.OpenSettle.Duration()}); err != nil {
		s.Close()
		return nil, err
	}
	log.Debug().Interface("kinds", s.Registry.Kinds()).Msg("Action handlers registered")
	s.Dispatcher = actions.NewDispatcher(s.Registry, caps, s.Ledger, actions.Options{
		RateLimitRPS: cfg.Dispatch.RateLimitRPS,
	})

	s.Modes = modes.NewRegistry(modes.DirLoader{
		Dir:    cfg.Paths.ModesDir,
		Window: cfg.Controller.SequenceWindow.Duration(),
	})
	s.Controller = controller.New(s.Dispatcher, s.Modes, controller.Options{
		FPS:              cfg.Controller.FPS,
		HistoryRetention: cfg.Controller.HistoryRetention.Duration(),
		Recorder:         s.Ledger,
		Publisher:        s.Bus,
	})

	if cfg.Status.Enabled {
		s.Status = status.NewServer(cfg.Status.Host, cfg.Status.Port, status.Deps{
			Controller: s.Controller,
			Selector:   s.Watchlist,
			History:    s.Ledger,
			Events:     s.Bus,
		})
		s.Status.Subscribe(s.Bus)
	}

	return s, nil
}

// Start opens the label source and starts all background services.
// onExit is called once when the controller loop ends.
func (s *Services) Start(ctx context.Context, onExit func(error)) error {
	src, err := s.openSource()
	if err != nil {
		return err
	}
	s.source = src

	s.state.Track(s.Bus)
	s.Controller.SetMode(s.state.Initial(s.cfg.Controller.InitialMode, s.cfg.Controller.ResumeMode))

	s.KV.StartCleanup(ctx, time.Minute)
	s.startLedgerCleanup(ctx)

	if s.Status != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Status.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
				log.Error().Err(err).Msg("Status server error")
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.Controller.Run(ctx, src)
		if errors.Is(err, vision.ErrSourceClosed) {
			log.Info().Msg("Label source closed")
			err = nil
		}
		if ctx.Err() == nil {
			onExit(err)
		}
	}()

	if s.Status != nil {
		s.Status.SetReady(true)
	}
	return nil
}

func (s *Services) startLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := s.cfg.Ledger.Retention()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Ledger.DeleteOlderThan(retention)
				if err != nil {
					log.Error().Err(err).Msg("Ledger cleanup failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("deleted", n).Msg("Ledger cleanup")
				}
			}
		}
	}()
}

// ClearState clears the persisted mode and watch list state.
func (s *Services) ClearState() error {
	return errors.Join(
		s.KV.Bucket(controllerBucket, true).Clear(),
		s.KV.Bucket(watchlistBucket, true).Clear(),
	)
}

// Stop waits for background work and releases all resources.
func (s *Services) Stop() error {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close label source")
		}
	}

	timeout := s.cfg.ShutdownTimeout.Duration()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.KV.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Background services did not stop in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.Bus.Close(ctx)

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close service")
		}
	}
	s.closers = nil
	if s.DB != nil {
		s.DB.Close()
	}
}
