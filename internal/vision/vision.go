// Package vision acquires frames and crops the region of interest.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrSourceClosed is returned by grabbers and label sources that can no longer produce input.
var ErrSourceClosed = errors.New("frame source closed")

// Grabber produces frames.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}

// ROI is a rectangle in frame coordinates, configured as [x, y, w, h].
type ROI struct {
	X, Y, W, H int
}

// ParseROI builds an ROI from a [x, y, w, h] list.
func ParseROI(v []int) (ROI, error) {
	if len(v) != 4 {
		return ROI{}, fmt.Errorf("roi must have 4 elements [x, y, w, h], got %d", len(v))
	}
	r := ROI{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if r.W <= 0 || r.H <= 0 {
		return ROI{}, fmt.Errorf("roi width and height must be positive, got %dx%d", r.W, r.H)
	}
	return r, nil
}

// Rect returns the ROI as a rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside the ROI, clipped to the frame.
// The result is empty when the ROI lies outside the frame.
func (r ROI) Crop(img image.Image) image.Image {
	if img == nil {
		return nil
	}
	rect := r.Rect().Add(img.Bounds().Min).Intersect(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
		}
	}
	return out
}
