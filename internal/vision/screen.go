package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// DisplayBounds returns the bounds of display i.
func DisplayBounds(i int) (image.Rectangle, bool) {
	if i < 0 || i >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, false
	}
	return screenshot.GetDisplayBounds(i), true
}

// ScreenGrabber captures a display. Only the ROI is captured, offset by the
// display origin, so frames are already cropped to the ROI's size.
type ScreenGrabber struct {
	rect image.Rectangle
}

// NewScreenGrabber captures roi on display.
func NewScreenGrabber(display int, roi ROI) (*ScreenGrabber, error) {
	bounds, ok := DisplayBounds(display)
	if !ok {
		return nil, fmt.Errorf("display %d not found (%d active)", display, screenshot.NumActiveDisplays())
	}
	rect := roi.Rect().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("roi %v lies outside display %d %v", roi.Rect(), display, bounds)
	}
	return &ScreenGrabber{rect: rect}, nil
}

// Grab captures the configured rectangle.
func (g *ScreenGrabber) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(g.rect)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return img, nil
}

// Close is a no-op.
func (g *ScreenGrabber) Close() error {
	return nil
}
