//go:build opencv

package opencv

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/vision"
)

// Available reports whether the binary was built with OpenCV support.
const Available = true

// Camera grabs frames from a video capture device.
type Camera struct {
	mu     sync.Mutex
	device string
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// OpenCamera opens a device by index ("0") or by path/URL.
func OpenCamera(device string) (*Camera, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}

	c, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("opening camera %q: %w", device, err)
	}
	log.Info().Str("device", device).Msg("Camera opened")

	return &Camera{device: device, cap: c, frame: gocv.NewMat()}, nil
}

// Grab reads the next frame. A failed read means the device is gone.
func (c *Camera) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, vision.ErrSourceClosed
	}
	if ok := c.cap.Read(&c.frame); !ok {
		return nil, fmt.Errorf("%w: cannot read from camera %q", vision.ErrSourceClosed, c.device)
	}
	if c.frame.Empty() {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	return c.frame.ToImage()
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	return c.cap.Close()
}

// Counter counts in-range pixels with cv::inRange. It satisfies color.Counter.
type Counter struct{}

// Count converts region to HSV once and masks it per profile.
func (Counter) Count(region image.Image, profiles []color.Profile) []int {
	counts := make([]int, len(profiles))
	if region == nil || region.Bounds().Empty() || len(profiles) == 0 {
		return counts
	}

	bgr, err := gocv.ImageToMatRGB(region)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to convert region to Mat")
		return counts
	}
	defer bgr.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	for i, p := range profiles {
		lower := gocv.NewScalar(float64(p.Lower.H()), float64(p.Lower.S()), float64(p.Lower.V()), 0)
		upper := gocv.NewScalar(float64(p.Upper.H()), float64(p.Upper.S()), float64(p.Upper.V()), 0)
		gocv.InRangeWithScalar(hsv, lower, upper, &mask)
		counts[i] = gocv.CountNonZero(mask)
	}
	return counts
}
