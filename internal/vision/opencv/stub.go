//go:build !opencv

package opencv

import (
	"context"
	"errors"
	"image"

	"github.com/dokzlo13/chromad/internal/color"
)

// Available reports whether the binary was built with OpenCV support.
const Available = false

// ErrUnavailable is returned when the binary was built without the opencv tag.
var ErrUnavailable = errors.New("built without OpenCV support (rebuild with -tags opencv)")

// Camera is unavailable in this build.
type Camera struct{}

// OpenCamera always fails in this build.
func OpenCamera(device string) (*Camera, error) {
	return nil, ErrUnavailable
}

// Grab always fails in this build.
func (c *Camera) Grab(ctx context.Context) (image.Image, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (c *Camera) Close() error {
	return nil
}

// Counter falls back to the pure Go counter in this build.
type Counter struct{}

// Count implements color.Counter.
func (Counter) Count(region image.Image, profiles []color.Profile) []int {
	return color.NativeCounter{}.Count(region, profiles)
}
