package color

import (
	"image"
	"math"
)

// ToHSV converts an 8-bit RGB triple to OpenCV's 8-bit HSV (H in [0,179]).
func ToHSV(r, g, b uint8) HSV {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	var s float64
	if maxC > 0 {
		s = 255 * delta / maxC
	}

	var h float64
	if delta > 0 {
		switch maxC {
		case rf:
			h = 60 * (gf - bf) / delta
		case gf:
			h = 120 + 60*(bf-rf)/delta
		default:
			h = 240 + 60*(rf-gf)/delta
		}
		if h < 0 {
			h += 360
		}
	}

	hue := int(math.Round(h / 2))
	if hue >= 180 {
		hue -= 180
	}
	return HSV{hue, int(math.Round(s)), int(maxC)}
}

// Counter counts, for each profile, the pixels of region that fall inside its range.
// This is the mask primitive; implementations may be backed by native code.
type Counter interface {
	Count(region image.Image, profiles []Profile) []int
}

// NativeCounter is a pure Go Counter. Each pixel is converted once and tested
// against every profile.
type NativeCounter struct{}

// Count implements Counter.
func (NativeCounter) Count(region image.Image, profiles []Profile) []int {
	counts := make([]int, len(profiles))
	if region == nil || len(profiles) == 0 {
		return counts
	}

	visit := func(c HSV) {
		for i := range profiles {
			if profiles[i].Contains(c) {
				counts[i]++
			}
		}
	}

	b := region.Bounds()
	if rgba, ok := region.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := rgba.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x++ {
				visit(ToHSV(rgba.Pix[off], rgba.Pix[off+1], rgba.Pix[off+2]))
				off += 4
			}
		}
		return counts
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := region.At(x, y).RGBA()
			visit(ToHSV(uint8(r>>8), uint8(g>>8), uint8(bl>>8)))
		}
	}
	return counts
}

// MeanHSV averages the per-pixel HSV of region. ok is false for empty regions.
func MeanHSV(region image.Image) (mean HSV, ok bool) {
	if region == nil {
		return HSV{}, false
	}
	b := region.Bounds()
	n := b.Dx() * b.Dy()
	if n <= 0 {
		return HSV{}, false
	}

	var sum [3]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := region.At(x, y).RGBA()
			c := ToHSV(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			sum[0] += c[0]
			sum[1] += c[1]
			sum[2] += c[2]
		}
	}
	for i := range mean {
		mean[i] = int(math.Round(float64(sum[i]) / float64(n)))
	}
	return mean, true
}
