package modes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrModeNotFound is returned when no configuration exists for a mode.
var ErrModeNotFound = errors.New("mode not found")

// Loader produces modes by name.
type Loader interface {
	Load(name string) (*Mode, error)
}

// DirLoader reads <Dir>/<name>.json. Window, when set, replaces
// sequence.DefaultWindow for rules without a time_window.
type DirLoader struct {
	Dir    string
	Window time.Duration
}

// Load reads and parses a mode file.
func (l DirLoader) Load(name string) (*Mode, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid mode name %q", ErrModeNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(l.Dir, name+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mode %s: %w", name, err)
	}
	return ParseWindow(name, data, l.Window)
}

// Names lists the modes available in the directory, sorted.
func (l DirLoader) Names() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(l.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(p), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// MapLoader serves modes from raw JSON documents held in memory.
type MapLoader map[string]string

// Load parses the document registered under name.
func (l MapLoader) Load(name string) (*Mode, error) {
	doc, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModeNotFound, name)
	}
	return Parse(name, []byte(doc))
}

// CheckResult is the outcome of validating one mode file.
type CheckResult struct {
	Name string
	Mode *Mode
	Err  error
}

// CheckAll loads every mode in the directory.
func CheckAll(l DirLoader) ([]CheckResult, error) {
	names, err := l.Names()
	if err != nil {
		return nil, err
	}
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		m, err := l.Load(name)
		results = append(results, CheckResult{Name: name, Mode: m, Err: err})
	}
	return results, nil
}
