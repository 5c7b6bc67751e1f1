package vision

import (
	"image"
	"image/color"
	"testing"

	hsv "github.com/dokzlo13/chromad/internal/color"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParseROI(t *testing.T) {
	if _, err := ParseROI([]int{1, 2, 3}); err == nil {
		t.Error("short roi accepted")
	}
	if _, err := ParseROI([]int{0, 0, 0, 10}); err == nil {
		t.Error("zero width accepted")
	}
	r, err := ParseROI([]int{10, 20, 30, 40})
	if err != nil || r.Rect() != image.Rect(10, 20, 40, 60) {
		t.Errorf("ParseROI = %+v, %v", r, err)
	}
}

func TestCrop(t *testing.T) {
	img := solid(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name string
		roi  ROI
		want image.Rectangle
	}{
		{"inside", ROI{10, 10, 20, 20}, image.Rect(10, 10, 30, 30)},
		{"clipped", ROI{90, 90, 20, 20}, image.Rect(90, 90, 100, 100)},
		{"outside", ROI{200, 200, 10, 10}, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.roi.Crop(img).Bounds()
			if got.Dx() != tt.want.Dx() || got.Dy() != tt.want.Dy() {
				t.Errorf("Crop bounds = %v, want size of %v", got, tt.want)
			}
		})
	}

	if (ROI{0, 0, 5, 5}).Crop(nil) != nil {
		t.Error("Crop(nil) should be nil")
	}
}

func TestCrop_OffsetFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(50, 50, 150, 150))
	got := ROI{0, 0, 10, 10}.Crop(img).Bounds()
	if got != image.Rect(50, 50, 60, 60) {
		t.Errorf("Crop on offset frame = %v", got)
	}
}

func TestChangeDetector(t *testing.T) {
	d := NewChangeDetector(-1)
	red := solid(32, 32, color.RGBA{255, 0, 0, 255})

	if !d.Changed(red) {
		t.Fatal("first region always counts as changed")
	}
	if d.Changed(red) {
		t.Fatal("identical region reported as changed")
	}

	half := solid(32, 32, color.RGBA{255, 0, 0, 255})
	for y := 0; y < 32; y++ {
		for x := 0; x < 16; x++ {
			half.SetRGBA(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	if !d.Changed(half) {
		t.Error("half-repainted region reported unchanged")
	}

	d.Reset()
	if !d.Changed(half) {
		t.Error("after Reset the next region counts as changed")
	}
}

func TestChangeDetector_FlatHueChange(t *testing.T) {
	d := NewChangeDetector(-1)
	red := solid(64, 64, color.RGBA{220, 20, 20, 255})
	yellow := solid(64, 64, color.RGBA{230, 220, 20, 255})

	d.Changed(red)
	if !d.Changed(yellow) {
		t.Error("flat red -> flat yellow reported unchanged")
	}
	if d.Changed(yellow) {
		t.Error("flat yellow repeated reported changed")
	}
	if !d.Changed(red) {
		t.Error("flat yellow -> flat red reported unchanged")
	}
}

func TestMeanClose_HueWraps(t *testing.T) {
	if !meanClose(hsv.HSV{178, 200, 200}, hsv.HSV{2, 200, 200}) {
		t.Error("hues 178 and 2 are 4 apart around the circle")
	}
	if meanClose(hsv.HSV{0, 200, 200}, hsv.HSV{30, 200, 200}) {
		t.Error("hues 0 and 30 should differ")
	}
	if meanClose(hsv.HSV{0, 200, 200}, hsv.HSV{0, 100, 200}) {
		t.Error("saturation shift should differ")
	}
}
