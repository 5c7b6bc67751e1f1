package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/config"
	"github.com/dokzlo13/chromad/internal/source"
	"github.com/dokzlo13/chromad/internal/vision"
	"github.com/dokzlo13/chromad/internal/vision/opencv"
)

// openSource builds the label source selected by source.kind or --simulate.
func (s *Services) openSource() (source.Source, error) {
	kind := s.cfg.Source.Kind
	if s.opts.Simulate {
		kind = config.SourceSimulation
	}

	if kind == config.SourceSimulation {
		log.Info().
			Interface("colors", s.Profiles.Names()).
			Msg("Simulation mode: type a color per line, 'none' or an empty line to clear, 'quit' to exit")
		return source.NewText(s.opts.Stdin, s.Profiles.Has), nil
	}

	var opts source.FramesOptions
	if s.cfg.Source.SkipUnchanged {
		opts.Detector = vision.NewChangeDetector(s.cfg.Source.HashDistance)
	}

	var roi *vision.ROI
	if len(s.cfg.Controller.ROI) > 0 {
		r, err := vision.ParseROI(s.cfg.Controller.ROI)
		if err != nil {
			return nil, fmt.Errorf("controller.roi: %w", err)
		}
		roi = &r
	}

	var grabber vision.Grabber
	switch kind {
	case config.SourceScreen:
		display := s.cfg.Source.Display
		region := vision.ROI{}
		if roi != nil {
			region = *roi
		} else if bounds, ok := vision.DisplayBounds(display); ok {
			region = vision.ROI{W: bounds.Dx(), H: bounds.Dy()}
		}
		g, err := vision.NewScreenGrabber(display, region)
		if err != nil {
			return nil, fmt.Errorf("failed to open screen source: %w", err)
		}
		grabber = g
		log.Info().Int("display", display).Interface("roi", region).Msg("Screen source opened")
	default:
		cam, err := opencv.OpenCamera(s.cfg.Source.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to open camera: %w", err)
		}
		grabber = cam
		opts.ROI = roi
	}

	return source.NewFrames(grabber, s.Classifier, s.Profiles, opts), nil
}
