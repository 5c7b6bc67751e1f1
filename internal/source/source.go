// Package source provides the label streams the controller consumes: one
// classifies captured frames, the other reads labels typed on a terminal.
package source

import (
	"context"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/vision"
)

// Source yields the label observed at each tick. Errors are terminal.
type Source interface {
	Next(ctx context.Context) (color.Label, error)
	Close() error
}

// Frames classifies the ROI of grabbed frames.
type Frames struct {
	grabber    vision.Grabber
	roi        *vision.ROI
	classifier *color.Classifier
	profiles   *color.ProfileSet
	detector   *vision.ChangeDetector

	last color.Label
}

// FramesOptions configures a frame source.
type FramesOptions struct {
	// ROI crops each frame. Nil means the grabber already returns the region.
	ROI *vision.ROI
	// Detector, when set, skips classification of unchanged regions.
	Detector *vision.ChangeDetector
}

// NewFrames creates a frame-backed source.
func NewFrames(g vision.Grabber, classifier *color.Classifier, profiles *color.ProfileSet, opts FramesOptions) *Frames {
	return &Frames{
		grabber:    g,
		roi:        opts.ROI,
		classifier: classifier,
		profiles:   profiles,
		detector:   opts.Detector,
	}
}

// Next grabs a frame and classifies its region.
func (f *Frames) Next(ctx context.Context) (color.Label, error) {
	img, err := f.grabber.Grab(ctx)
	if err != nil {
		return color.None, err
	}

	region := f.Region(img)
	if f.detector != nil && !f.detector.Changed(region) {
		return f.last, nil
	}

	res := f.classifier.Evaluate(region, f.profiles)
	if res.Label != f.last {
		log.Debug().
			Str("label", res.Label.String()).
			Float64("coverage", res.Coverage).
			Msg("Detected label changed")
	}
	f.last = res.Label
	return res.Label, nil
}

// Region crops img to the configured ROI.
func (f *Frames) Region(img image.Image) image.Image {
	if f.roi == nil {
		return img
	}
	return f.roi.Crop(img)
}

// Close releases the grabber.
func (f *Frames) Close() error {
	return f.grabber.Close()
}
