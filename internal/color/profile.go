// Package color maps ROI pixels to symbolic color labels using HSV ranges.
package color

import (
	"errors"
	"fmt"
	"strings"
)

// Label is a symbolic color name. The zero value means no detection.
type Label string

// None is the "no detection" label.
const None Label = ""

// IsNone reports whether the label is the "no detection" label.
func (l Label) IsNone() bool { return l == None }

func (l Label) String() string {
	if l == None {
		return "none"
	}
	return string(l)
}

// ParseLabel normalizes user or config input into a Label.
// "none", "-" and blank strings map to None.
func ParseLabel(s string) Label {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "-":
		return None
	}
	return Label(s)
}

// HSV component bounds, OpenCV 8-bit convention.
const (
	MaxHue        = 179
	MaxSaturation = 255
	MaxValue      = 255
)

// ErrInvalidProfile is returned for profiles with out-of-range or inverted bounds.
var ErrInvalidProfile = errors.New("invalid color profile")

// HSV is a color in OpenCV's 8-bit HSV space (hue halved to fit a byte).
type HSV [3]int

// H returns the hue component.
func (c HSV) H() int { return c[0] }

// S returns the saturation component.
func (c HSV) S() int { return c[1] }

// V returns the value component.
func (c HSV) V() int { return c[2] }

// Valid reports whether every component lies within its range.
func (c HSV) Valid() bool {
	return c[0] >= 0 && c[0] <= MaxHue &&
		c[1] >= 0 && c[1] <= MaxSaturation &&
		c[2] >= 0 && c[2] <= MaxValue
}

// Clamp limits every component to its range.
func (c HSV) Clamp() HSV {
	limits := [3]int{MaxHue, MaxSaturation, MaxValue}
	for i := range c {
		if c[i] < 0 {
			c[i] = 0
		}
		if c[i] > limits[i] {
			c[i] = limits[i]
		}
	}
	return c
}

// Profile is a named inclusive HSV range.
type Profile struct {
	Name  Label
	Lower HSV
	Upper HSV
}

// Validate checks the bounds invariant: both ends in range and lower <= upper componentwise.
func (p Profile) Validate() error {
	if p.Name.IsNone() {
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	}
	if !p.Lower.Valid() || !p.Upper.Valid() {
		return fmt.Errorf("%w: %s: bounds out of range (lower=%v upper=%v)", ErrInvalidProfile, p.Name, p.Lower, p.Upper)
	}
	for i := range p.Lower {
		if p.Lower[i] > p.Upper[i] {
			return fmt.Errorf("%w: %s: lower %v exceeds upper %v", ErrInvalidProfile, p.Name, p.Lower, p.Upper)
		}
	}
	return nil
}

// Contains reports whether c lies inside the profile's inclusive range.
func (p Profile) Contains(c HSV) bool {
	return c[0] >= p.Lower[0] && c[0] <= p.Upper[0] &&
		c[1] >= p.Lower[1] && c[1] <= p.Upper[1] &&
		c[2] >= p.Lower[2] && c[2] <= p.Upper[2]
}

// ProfileSet is an ordered, immutable collection of profiles keyed by name.
// Order is insertion order and decides classification ties.
type ProfileSet struct {
	profiles []Profile
	index    map[Label]int
}

// NewProfileSet validates the profiles and builds a set. Duplicate names are rejected.
func NewProfileSet(profiles ...Profile) (*ProfileSet, error) {
	s := &ProfileSet{
		profiles: make([]Profile, 0, len(profiles)),
		index:    make(map[Label]int, len(profiles)),
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidProfile, p.Name)
		}
		s.index[p.Name] = len(s.profiles)
		s.profiles = append(s.profiles, p)
	}
	return s, nil
}

// Profiles returns a copy of the profiles in set order.
func (s *ProfileSet) Profiles() []Profile {
	if s == nil {
		return nil
	}
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Get returns the profile with the given name.
func (s *ProfileSet) Get(name Label) (Profile, bool) {
	if s == nil {
		return Profile{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Profile{}, false
	}
	return s.profiles[i], true
}

// Has reports whether the set contains a profile for the label.
func (s *ProfileSet) Has(name Label) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of profiles.
func (s *ProfileSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.profiles)
}

// Names returns profile names in set order.
func (s *ProfileSet) Names() []Label {
	if s == nil {
		return nil
	}
	names := make([]Label, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// DefaultProfiles is the static fallback used when no calibration or color files exist.
func DefaultProfiles() *ProfileSet {
	s, _ := NewProfileSet(
		Profile{Name: "red", Lower: HSV{0, 120, 70}, Upper: HSV{10, 255, 255}},
		Profile{Name: "yellow", Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}},
		Profile{Name: "green", Lower: HSV{40, 70, 70}, Upper: HSV{80, 255, 255}},
		Profile{Name: "blue", Lower: HSV{100, 150, 50}, Upper: HSV{130, 255, 255}},
	)
	return s
}
