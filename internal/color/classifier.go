package color

import (
	"image"

	"github.com/rs/zerolog/log"
)

// DefaultMinCoverage is the fraction of ROI pixels the winning profile must exceed.
const DefaultMinCoverage = 0.2

// Result describes a single classification.
type Result struct {
	Label    Label
	Count    int     // pixels matched by the winning profile
	Total    int     // pixels in the region
	Coverage float64 // Count / Total
}

// Classifier picks the dominant profile of a region.
// It holds no per-frame state and is safe for concurrent use if its Counter is.
type Classifier struct {
	counter     Counter
	minCoverage float64
}

// NewClassifier creates a classifier. A nil counter selects NativeCounter and a
// non-positive minCoverage selects DefaultMinCoverage.
func NewClassifier(counter Counter, minCoverage float64) *Classifier {
	if counter == nil {
		counter = NativeCounter{}
	}
	if minCoverage <= 0 {
		minCoverage = DefaultMinCoverage
	}
	return &Classifier{counter: counter, minCoverage: minCoverage}
}

// MinCoverage returns the configured coverage threshold.
func (c *Classifier) MinCoverage() float64 {
	return c.minCoverage
}

// Classify returns the label of the dominant profile, or None.
func (c *Classifier) Classify(region image.Image, profiles *ProfileSet) Label {
	return c.Evaluate(region, profiles).Label
}

// Evaluate classifies region and reports the winning count.
// The profile with the highest count wins; ties go to the earliest profile in set order.
// The winner is only reported when its count strictly exceeds minCoverage of the region.
// Empty or invalid regions yield None.
func (c *Classifier) Evaluate(region image.Image, profiles *ProfileSet) (res Result) {
	if region == nil || profiles.Len() == 0 {
		return Result{}
	}
	total := region.Bounds().Dx() * region.Bounds().Dy()
	if total <= 0 {
		return Result{}
	}
	res.Total = total

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Color counter panicked, reporting no detection")
			res = Result{Total: total}
		}
	}()

	list := profiles.Profiles()
	counts := c.counter.Count(region, list)

	best := -1
	bestCount := 0
	for i, n := range counts {
		if i >= len(list) {
			break
		}
		if n > bestCount {
			best = i
			bestCount = n
		}
	}

	if best < 0 {
		return res
	}
	res.Count = bestCount
	res.Coverage = float64(bestCount) / float64(total)
	if float64(bestCount) > c.minCoverage*float64(total) {
		res.Label = list[best].Name
	}
	return res
}
