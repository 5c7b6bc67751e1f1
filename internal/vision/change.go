package vision

import (
	"image"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog/log"

	hsv "github.com/dokzlo13/chromad/internal/color"
)

// DefaultHashDistance is the perceptual-hash distance at or below which two
// regions count as unchanged.
const DefaultHashDistance = 2

// MaxMeanDelta is the largest per-component shift of the mean HSV, hue
// measured around the circle, that still counts as unchanged. The perceptual
// hash only sees luminance structure, so flat regions of different hues hash
// alike and the mean has to tell them apart.
const MaxMeanDelta = 8

// ChangeDetector compares successive regions by perceptual hash and mean
// color so unchanged regions can skip classification.
type ChangeDetector struct {
	maxDistance int
	last        *goimagehash.ImageHash
	lastMean    hsv.HSV
}

// NewChangeDetector creates a detector. A negative maxDistance selects DefaultHashDistance.
func NewChangeDetector(maxDistance int) *ChangeDetector {
	if maxDistance < 0 {
		maxDistance = DefaultHashDistance
	}
	return &ChangeDetector{maxDistance: maxDistance}
}

// Changed reports whether img differs from the last region that counted as a change.
// Hash failures and empty regions always count as a change.
func (d *ChangeDetector) Changed(img image.Image) bool {
	mean, ok := hsv.MeanHSV(img)
	if !ok {
		d.last = nil
		return true
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		d.last = nil
		return true
	}

	if d.last != nil && meanClose(d.lastMean, mean) {
		dist, err := d.last.Distance(hash)
		if err == nil && dist <= d.maxDistance {
			log.Trace().Int("distance", dist).Msg("Region unchanged, skipping classification")
			return false
		}
	}

	d.last = hash
	d.lastMean = mean
	return true
}

// Reset forgets the last region.
func (d *ChangeDetector) Reset() {
	d.last = nil
}

func meanClose(a, b hsv.HSV) bool {
	dh := abs(a.H() - b.H())
	if wrapped := hsv.MaxHue + 1 - dh; wrapped < dh {
		dh = wrapped
	}
	return dh <= MaxMeanDelta &&
		abs(a.S()-b.S()) <= MaxMeanDelta &&
		abs(a.V()-b.V()) <= MaxMeanDelta
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
