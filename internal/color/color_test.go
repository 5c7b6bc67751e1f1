package color

import (
	"image"
	stdcolor "image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fill returns a w x h image where the first n pixels (row-major) use a and the rest b.
func fill(w, h, n int, a, b stdcolor.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if i < n {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
			i++
		}
	}
	return img
}

var (
	pureRed    = stdcolor.RGBA{255, 0, 0, 255}
	pureYellow = stdcolor.RGBA{255, 255, 0, 255}
	gray       = stdcolor.RGBA{128, 128, 128, 255}
)

func testProfiles(t *testing.T) *ProfileSet {
	t.Helper()
	set, err := NewProfileSet(
		Profile{Name: "red", Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}},
		Profile{Name: "yellow", Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}},
	)
	if err != nil {
		t.Fatalf("NewProfileSet: %v", err)
	}
	return set
}

func TestToHSV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    HSV
	}{
		{"red", 255, 0, 0, HSV{0, 255, 255}},
		{"yellow", 255, 255, 0, HSV{30, 255, 255}},
		{"green", 0, 255, 0, HSV{60, 255, 255}},
		{"blue", 0, 0, 255, HSV{120, 255, 255}},
		{"black", 0, 0, 0, HSV{0, 0, 0}},
		{"gray", 128, 128, 128, HSV{0, 0, 128}},
		{"magenta_wraps_below_180", 255, 0, 255, HSV{150, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHSV(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("ToHSV(%d,%d,%d) = %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Profile
		wantErr bool
	}{
		{"ok", Profile{Name: "red", Lower: HSV{0, 0, 0}, Upper: HSV{179, 255, 255}}, false},
		{"hue_out_of_range", Profile{Name: "red", Lower: HSV{0, 0, 0}, Upper: HSV{180, 255, 255}}, true},
		{"inverted", Profile{Name: "red", Lower: HSV{20, 0, 0}, Upper: HSV{10, 255, 255}}, true},
		{"no_name", Profile{Lower: HSV{0, 0, 0}, Upper: HSV{10, 255, 255}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProfileSet_RejectsDuplicates(t *testing.T) {
	p := Profile{Name: "red", Lower: HSV{0, 0, 0}, Upper: HSV{10, 255, 255}}
	if _, err := NewProfileSet(p, p); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	profiles := testProfiles(t)
	c := NewClassifier(nil, 0)
	img := fill(10, 10, 60, pureRed, pureYellow)

	first := c.Classify(img, profiles)
	if first != "red" {
		t.Fatalf("Classify = %q, want red", first)
	}
	for i := 0; i < 20; i++ {
		if got := c.Classify(img, profiles); got != first {
			t.Fatalf("run %d: Classify = %q, want %q", i, got, first)
		}
	}
}

func TestClassify_CoverageThreshold(t *testing.T) {
	profiles := testProfiles(t)
	c := NewClassifier(nil, 0.2)

	tests := []struct {
		name string
		n    int // red pixels out of 100, rest gray
		want Label
	}{
		{"below_threshold", 15, None},
		{"at_threshold_is_not_enough", 20, None},
		{"above_threshold", 21, "red"},
		{"full", 100, "red"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fill(10, 10, tt.n, pureRed, gray)
			if got := c.Classify(img, profiles); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_BelowThresholdEvenWhenBest(t *testing.T) {
	profiles := testProfiles(t)
	c := NewClassifier(nil, 0.5)
	// red beats yellow 40 to 10 but 40% is below the 50% threshold.
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < 100; i++ {
		x, y := i%10, i/10
		switch {
		case i < 40:
			img.SetRGBA(x, y, pureRed)
		case i < 50:
			img.SetRGBA(x, y, pureYellow)
		default:
			img.SetRGBA(x, y, gray)
		}
	}
	res := c.Evaluate(img, profiles)
	if res.Label != None {
		t.Errorf("Label = %q, want none", res.Label)
	}
	if res.Count != 40 || res.Total != 100 {
		t.Errorf("Count/Total = %d/%d, want 40/100", res.Count, res.Total)
	}
}

func TestClassify_TieGoesToFirstProfile(t *testing.T) {
	img := fill(10, 10, 50, pureRed, pureYellow)

	redFirst := testProfiles(t)
	yellowFirst, err := NewProfileSet(
		Profile{Name: "yellow", Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}},
		Profile{Name: "red", Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}},
	)
	if err != nil {
		t.Fatal(err)
	}

	c := NewClassifier(nil, 0.2)
	if got := c.Classify(img, redFirst); got != "red" {
		t.Errorf("red-first order: got %q, want red", got)
	}
	if got := c.Classify(img, yellowFirst); got != "yellow" {
		t.Errorf("yellow-first order: got %q, want yellow", got)
	}
}

func TestClassify_EmptyRegion(t *testing.T) {
	c := NewClassifier(nil, 0)
	profiles := testProfiles(t)

	if got := c.Classify(nil, profiles); got != None {
		t.Errorf("nil region: got %q", got)
	}
	if got := c.Classify(image.NewRGBA(image.Rect(0, 0, 0, 0)), profiles); got != None {
		t.Errorf("empty region: got %q", got)
	}
	if got := c.Classify(fill(4, 4, 16, pureRed, pureRed), nil); got != None {
		t.Errorf("no profiles: got %q", got)
	}
}

type panickyCounter struct{}

func (panickyCounter) Count(image.Image, []Profile) []int { panic("boom") }

func TestClassify_CounterPanicIsNoDetection(t *testing.T) {
	c := NewClassifier(panickyCounter{}, 0)
	if got := c.Classify(fill(4, 4, 16, pureRed, pureRed), testProfiles(t)); got != None {
		t.Errorf("got %q, want none", got)
	}
}

func TestClassify_SubImageBounds(t *testing.T) {
	img := fill(20, 20, 400, pureYellow, pureYellow)
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.SetRGBA(x, y, pureRed)
		}
	}
	sub := img.SubImage(image.Rect(10, 10, 20, 20))
	if got := NewClassifier(nil, 0).Classify(sub, testProfiles(t)); got != "red" {
		t.Errorf("got %q, want red", got)
	}
}

func TestParseCalibration_KeepsOrderAndMigratesLegacyKeys(t *testing.T) {
	doc := `{
		"yellow": {"hsv_lower": [20.4, 100, 100], "hsv_upper": [30, 255, 255]},
		"red": {"lower": [170, 195, 75], "upper": [180, 255, 255]}
	}`
	set, err := ParseCalibration(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseCalibration: %v", err)
	}
	names := set.Names()
	if len(names) != 2 || names[0] != "yellow" || names[1] != "red" {
		t.Fatalf("Names = %v, want [yellow red]", names)
	}
	red, _ := set.Get("red")
	if red.Upper.H() != MaxHue {
		t.Errorf("red upper hue = %d, want clamped to %d", red.Upper.H(), MaxHue)
	}
	yellow, _ := set.Get("yellow")
	if yellow.Lower != (HSV{20, 100, 100}) {
		t.Errorf("yellow lower = %v", yellow.Lower)
	}
}

func TestParseCalibration_Invalid(t *testing.T) {
	docs := map[string]string{
		"not_object": `[1,2]`,
		"short":      `{"red": {"lower": [0, 0], "upper": [10, 255, 255]}}`,
		"inverted":   `{"red": {"lower": [50, 0, 0], "upper": [10, 255, 255]}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCalibration(strings.NewReader(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveCalibration_RoundTripPreservesOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration", "results.json")

	if err := SaveCalibration(path, Profile{Name: "red", Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}}); err != nil {
		t.Fatal(err)
	}
	if err := SaveCalibration(path, Profile{Name: "yellow", Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}}); err != nil {
		t.Fatal(err)
	}
	if err := SaveCalibration(path, Profile{Name: "red", Lower: HSV{1, 110, 110}, Upper: HSV{9, 255, 255}}); err != nil {
		t.Fatal(err)
	}

	set, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if got := set.Names(); len(got) != 2 || got[0] != "red" || got[1] != "yellow" {
		t.Fatalf("Names = %v", got)
	}
	red, _ := set.Get("red")
	if red.Lower != (HSV{1, 110, 110}) {
		t.Errorf("red lower = %v, want replaced value", red.Lower)
	}
}

func TestResolveProfiles(t *testing.T) {
	dir := t.TempDir()
	colors := filepath.Join(dir, "colors")
	if err := os.MkdirAll(colors, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(colors, "blue.json"), []byte(`{"lower":[100,150,50],"upper":[130,255,255]}`), 0o644)
	os.WriteFile(filepath.Join(colors, "amber.json"), []byte(`{"lower":[10,150,50],"upper":[20,255,255]}`), 0o644)

	missing := filepath.Join(dir, "missing.json")

	set, source := ResolveProfiles(true, missing, colors)
	if source != colors {
		t.Fatalf("source = %q, want colors dir", source)
	}
	if names := set.Names(); len(names) != 2 || names[0] != "amber" {
		t.Errorf("Names = %v, want lexical file order", names)
	}

	set, source = ResolveProfiles(true, missing, filepath.Join(dir, "nope"))
	if source != "defaults" || set.Len() == 0 {
		t.Errorf("expected default profiles, got %q (%d)", source, set.Len())
	}

	calib := filepath.Join(dir, "calib.json")
	os.WriteFile(calib, []byte(`{"red":{"lower":[0,100,100],"upper":[10,255,255]}}`), 0o644)
	if _, source = ResolveProfiles(true, calib, colors); source != calib {
		t.Errorf("source = %q, want calibration file", source)
	}
	if _, source = ResolveProfiles(false, calib, colors); source != colors {
		t.Errorf("use_calibrated=false: source = %q, want colors dir", source)
	}
}

func TestCalibratorRange(t *testing.T) {
	var c Calibrator
	if _, _, ok := c.Range(10); ok {
		t.Fatal("Range with no samples should not be ok")
	}
	c.Add(HSV{5, 200, 250})
	c.Add(HSV{8, 180, 240})

	lower, upper, ok := c.Range(10)
	if !ok {
		t.Fatal("Range not ok")
	}
	if lower != (HSV{0, 170, 230}) {
		t.Errorf("lower = %v", lower)
	}
	if upper != (HSV{18, 210, 255}) {
		t.Errorf("upper = %v", upper)
	}
}

func TestMeanHSV(t *testing.T) {
	mean, ok := MeanHSV(fill(2, 2, 4, pureYellow, pureYellow))
	if !ok || mean != (HSV{30, 255, 255}) {
		t.Errorf("MeanHSV = %v, %v", mean, ok)
	}
	if _, ok := MeanHSV(image.NewRGBA(image.Rect(0, 0, 0, 0))); ok {
		t.Error("MeanHSV of empty region should not be ok")
	}
}

func TestParseLabel(t *testing.T) {
	cases := map[string]Label{" Red ": "red", "none": None, "": None, "-": None, "YELLOW": "yellow"}
	for in, want := range cases {
		if got := ParseLabel(in); got != want {
			t.Errorf("ParseLabel(%q) = %q, want %q", in, got, want)
		}
	}
	if None.String() != "none" {
		t.Errorf("None.String() = %q", None.String())
	}
}

func TestToHSV_ReportsClamping(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		want    HSV
		clamped bool
	}{
		{"in_range", []float64{10.4, 200, 99.6}, HSV{10, 200, 100}, false},
		{"hue_180", []float64{180, 255, 255}, HSV{179, 255, 255}, true},
		{"hue_250", []float64{250, 10, 10}, HSV{179, 10, 10}, true},
		{"negative", []float64{0, -5, 300}, HSV{0, 0, 255}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped, err := toHSV(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || clamped != tt.clamped {
				t.Errorf("toHSV(%v) = %v, clamped=%v; want %v, clamped=%v", tt.in, got, clamped, tt.want, tt.clamped)
			}
		})
	}

	if _, _, err := toHSV([]float64{1, 2}); err == nil {
		t.Error("short triple accepted")
	}
}
