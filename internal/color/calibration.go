package color

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// rangeJSON is the on-disk range schema. hsv_lower/hsv_upper is the legacy
// spelling written by older calibration runs; it is migrated to lower/upper on load.
type rangeJSON struct {
	Lower    []float64 `json:"lower,omitempty"`
	Upper    []float64 `json:"upper,omitempty"`
	HSVLower []float64 `json:"hsv_lower,omitempty"`
	HSVUpper []float64 `json:"hsv_upper,omitempty"`
}

func (r rangeJSON) profile(name string) (Profile, error) {
	lower, upper := r.Lower, r.Upper
	if lower == nil {
		lower = r.HSVLower
	}
	if upper == nil {
		upper = r.HSVUpper
	}

	lo, err := boundHSV(name, "lower", lower)
	if err != nil {
		return Profile{}, err
	}
	hi, err := boundHSV(name, "upper", upper)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{Name: ParseLabel(name), Lower: lo, Upper: hi}
	return p, p.Validate()
}

func boundHSV(name, which string, v []float64) (HSV, error) {
	c, clamped, err := toHSV(v)
	if err != nil {
		return HSV{}, fmt.Errorf("%w: %s: %s: %v", ErrInvalidProfile, name, which, err)
	}
	if clamped {
		log.Warn().
			Str("color", name).
			Str("bound", which).
			Floats64("stored", v).
			Interface("used", c).
			Msg("Calibration bound out of range, clamped")
	}
	return c, nil
}

// toHSV rounds and clamps a JSON triple. Clamping covers files that stored the
// inclusive hue bound as 180 or widened every component up to 255; clamped
// reports whether any component changed.
func toHSV(v []float64) (c HSV, clamped bool, err error) {
	if len(v) != 3 {
		return HSV{}, false, fmt.Errorf("expected 3 components, got %d", len(v))
	}
	for i := range v {
		c[i] = int(math.Round(v[i]))
	}
	fixed := c.Clamp()
	return fixed, fixed != c, nil
}

// ParseCalibration decodes a calibration document ({name: {lower, upper}}),
// keeping the key order of the document as profile order.
func ParseCalibration(r io.Reader) (*ProfileSet, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("calibration must be a JSON object")
	}

	var profiles []Profile
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read calibration key: %w", err)
		}
		name, _ := keyTok.(string)

		var raw rangeJSON
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode range %q: %w", name, err)
		}
		p, err := raw.profile(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return NewProfileSet(profiles...)
}

// LoadCalibration reads a calibration file.
func LoadCalibration(path string) (*ProfileSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCalibration(f)
}

// LoadProfileDir reads one profile per *.json file in dir, named after the file stem.
// Files are taken in lexical order.
func LoadProfileDir(dir string) (*ProfileSet, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	profiles := make([]Profile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var raw rangeJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p, err := raw.profile(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return NewProfileSet(profiles...)
}

// ResolveProfiles picks the profile source for a session:
// the calibration file when useCalibrated is set and it loads, then the colors
// directory when it has entries, then DefaultProfiles. Failures only downgrade.
func ResolveProfiles(useCalibrated bool, calibrationPath, colorsDir string) (*ProfileSet, string) {
	if useCalibrated && calibrationPath != "" {
		set, err := LoadCalibration(calibrationPath)
		switch {
		case err == nil && set.Len() > 0:
			return set, calibrationPath
		case errors.Is(err, os.ErrNotExist):
			log.Warn().Str("path", calibrationPath).Msg("Calibration file not found, falling back")
		case err != nil:
			log.Warn().Err(err).Str("path", calibrationPath).Msg("Failed to load calibration, falling back")
		}
	}

	if colorsDir != "" {
		set, err := LoadProfileDir(colorsDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", colorsDir).Msg("Failed to load color profiles, falling back")
		} else if set.Len() > 0 {
			return set, colorsDir
		}
	}

	return DefaultProfiles(), "defaults"
}

// SaveCalibration writes or replaces one profile in the calibration file,
// keeping the other entries and their order. Legacy keys are rewritten.
func SaveCalibration(path string, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var existing []Profile
	if f, err := os.Open(path); err == nil {
		set, perr := ParseCalibration(f)
		f.Close()
		if perr != nil {
			return fmt.Errorf("failed to read existing calibration: %w", perr)
		}
		existing = set.Profiles()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	replaced := false
	for i := range existing {
		if existing[i].Name == p.Name {
			existing[i] = p
			replaced = true
		}
	}
	if !replaced {
		existing = append(existing, p)
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, prof := range existing {
		name, _ := json.Marshal(string(prof.Name))
		body, _ := json.Marshal(struct {
			Lower HSV `json:"lower"`
			Upper HSV `json:"upper"`
		}{prof.Lower, prof.Upper})
		fmt.Fprintf(&buf, "  %s: %s", name, body)
		if i < len(existing)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Calibrator accumulates ROI mean samples for one color.
type Calibrator struct {
	samples []HSV
}

// Add records a sample.
func (c *Calibrator) Add(sample HSV) {
	c.samples = append(c.samples, sample)
}

// Len returns the number of samples.
func (c *Calibrator) Len() int {
	return len(c.samples)
}

// Range returns the componentwise min/max of the samples widened by tolerance
// and clamped to valid bounds. ok is false without samples.
func (c *Calibrator) Range(tolerance int) (lower, upper HSV, ok bool) {
	if len(c.samples) == 0 {
		return HSV{}, HSV{}, false
	}
	lower, upper = c.samples[0], c.samples[0]
	for _, s := range c.samples[1:] {
		for i := range s {
			lower[i] = min(lower[i], s[i])
			upper[i] = max(upper[i], s[i])
		}
	}
	for i := range lower {
		lower[i] -= tolerance
		upper[i] += tolerance
	}
	return lower.Clamp(), upper.Clamp(), true
}
