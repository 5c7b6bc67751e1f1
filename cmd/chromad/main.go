package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/app"
	"github.com/dokzlo13/chromad/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	simulate := flag.Bool("simulate", false, "Read color labels from stdin instead of the camera")
	resetState := flag.Bool("reset-state", false, "Clear the remembered mode and watch list progress on startup")
	check := flag.Bool("check", false, "Validate mode files and scripts, then exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if *check {
		bad, err := app.Check(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to check modes")
		}
		if bad > 0 {
			log.Error().Int("invalid", bad).Msg("Mode check failed")
			os.Exit(1)
		}
		log.Info().Msg("All modes are valid")
		return
	}

	log.Info().Str("config", configPath).Bool("simulate", *simulate).Msg("Starting chromad")

	application, err := app.New(cfg, app.Options{Simulate: *simulate, Stdin: os.Stdin})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *resetState {
		log.Info().Msg("Clearing stored state (--reset-state)")
		if err := application.ResetState(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear stored state")
		}
	}

	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	application.Wait()

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	if application.Err() != nil {
		os.Exit(1)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
