// Command chromad-calibrate samples the ROI and records an HSV range for one color.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/app"
	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/config"
	"github.com/dokzlo13/chromad/internal/vision"
	"github.com/dokzlo13/chromad/internal/vision/opencv"
)

// Used when neither the config nor the global overlay names an ROI.
var defaultROI = vision.ROI{X: 100, Y: 100, W: 200, H: 200}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	name := flag.String("color", "", "Color name to calibrate (e.g. red, yellow)")
	samples := flag.Int("samples", 0, "Take this many samples automatically instead of prompting")
	interval := flag.Duration("interval", 200*time.Millisecond, "Delay between automatic samples")
	tolerance := flag.Int("tolerance", 10, "Widen the sampled range by this much on every component")
	sourceKind := flag.String("source", "", "Override source.kind (camera or screen)")
	out := flag.String("out", "", "Calibration file to update (default paths.calibration)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	label := color.ParseLabel(*name)
	if label.IsNone() {
		log.Fatal().Msg("--color is required")
	}
	if *sourceKind != "" {
		cfg.Source.Kind = *sourceKind
	}
	path := *out
	if path == "" {
		path = cfg.Paths.Calibration
	}

	roi := defaultROI
	if len(cfg.Controller.ROI) > 0 {
		if roi, err = vision.ParseROI(cfg.Controller.ROI); err != nil {
			log.Fatal().Err(err).Msg("Invalid controller.roi")
		}
	}

	grabber, crop, err := openGrabber(cfg, roi)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open source")
	}
	defer grabber.Close()

	ctx := app.SignalContext()
	s := &sampler{grabber: grabber, crop: crop, roi: roi}

	var cal color.Calibrator
	if *samples > 0 {
		err = s.auto(ctx, &cal, *samples, *interval)
	} else {
		err = s.interactive(ctx, &cal, *tolerance)
	}
	if errors.Is(err, errCancelled) {
		log.Info().Msg("Calibration cancelled")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Calibration failed")
	}

	lower, upper, ok := cal.Range(*tolerance)
	if !ok {
		log.Fatal().Msg("No samples taken")
	}
	profile := color.Profile{Name: label, Lower: lower, Upper: upper}
	if err := color.SaveCalibration(path, profile); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to save calibration")
	}
	log.Info().
		Str("color", label.String()).
		Interface("lower", lower).
		Interface("upper", upper).
		Int("samples", cal.Len()).
		Str("path", path).
		Msg("Saved calibration")
}

var errCancelled = errors.New("calibration cancelled")

// openGrabber returns the frame grabber and whether its frames still need the ROI crop.
func openGrabber(cfg *config.Config, roi vision.ROI) (vision.Grabber, bool, error) {
	switch cfg.Source.Kind {
	case config.SourceScreen:
		g, err := vision.NewScreenGrabber(cfg.Source.Display, roi)
		return g, false, err
	case config.SourceCamera:
		cam, err := opencv.OpenCamera(cfg.Source.Device)
		return cam, true, err
	default:
		return nil, false, fmt.Errorf("source %q cannot be calibrated", cfg.Source.Kind)
	}
}

type sampler struct {
	grabber vision.Grabber
	crop    bool
	roi     vision.ROI
}

func (s *sampler) sample(ctx context.Context) (color.HSV, error) {
	frame, err := s.grabber.Grab(ctx)
	if err != nil {
		return color.HSV{}, err
	}
	var region image.Image = frame
	if s.crop {
		region = s.roi.Crop(frame)
	}
	mean, ok := color.MeanHSV(region)
	if !ok {
		return color.HSV{}, errors.New("roi is empty, check controller.roi against the frame size")
	}
	return mean, nil
}

func (s *sampler) auto(ctx context.Context, cal *color.Calibrator, n int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for cal.Len() < n {
		mean, err := s.sample(ctx)
		if err != nil {
			return err
		}
		cal.Add(mean)
		log.Info().Int("sample", cal.Len()).Interface("hsv", mean).Msg("Sample added")

		select {
		case <-ctx.Done():
			return errCancelled
		case <-ticker.C:
		}
	}
	return nil
}

func (s *sampler) interactive(ctx context.Context, cal *color.Calibrator, tolerance int) error {
	fmt.Fprintln(os.Stderr, "Position the color in the ROI, then:")
	fmt.Fprintln(os.Stderr, "  Enter  add a sample")
	fmt.Fprintln(os.Stderr, "  s      save and exit")
	fmt.Fprintln(os.Stderr, "  q      quit without saving")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		var line string
		var open bool
		select {
		case <-ctx.Done():
			return errCancelled
		case line, open = <-lines:
		}
		if !open {
			return errCancelled
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "q", "quit":
			return errCancelled
		case "s", "save":
			if cal.Len() == 0 {
				log.Warn().Msg("Take at least one sample before saving")
				continue
			}
			return nil
		default:
			mean, err := s.sample(ctx)
			if err != nil {
				return err
			}
			cal.Add(mean)
			lower, upper, _ := cal.Range(tolerance)
			log.Info().
				Int("sample", cal.Len()).
				Interface("hsv", mean).
				Interface("lower", lower).
				Interface("upper", upper).
				Msg("Sample added")
		}
	}
}
