package source

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/color"
	"github.com/dokzlo13/chromad/internal/vision"
)

// Text turns typed lines into labels, standing in for a camera.
//
// A line with one label holds it, like a card kept in front of the camera,
// until a blank line or "none". A line with several labels shows each for a
// single tick and then shows nothing. Unknown labels are ignored. "quit"
// closes the source.
type Text struct {
	known func(color.Label) bool

	lines chan string
	done  chan struct{}
	once  sync.Once

	pending []color.Label
	sticky  color.Label
}

// NewText reads lines from r on a background goroutine. known decides which
// labels are accepted; nil accepts every label.
func NewText(r io.Reader, known func(color.Label) bool) *Text {
	t := newText(known)
	go t.read(r)
	return t
}

func newText(known func(color.Label) bool) *Text {
	if known == nil {
		known = func(color.Label) bool { return true }
	}
	return &Text{
		known: known,
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}
}

func (t *Text) read(r io.Reader) {
	defer close(t.lines)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-t.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Simulation input failed")
		return
	}
	log.Info().Msg("Simulation input closed, holding last label")
}

// Next returns the label for this tick. At most one input line is consumed per tick.
func (t *Text) Next(ctx context.Context) (color.Label, error) {
	if err := ctx.Err(); err != nil {
		return color.None, err
	}
	select {
	case <-t.done:
		return color.None, vision.ErrSourceClosed
	default:
	}

	if len(t.pending) == 0 {
		select {
		case line, ok := <-t.lines:
			if !ok {
				t.lines = nil
			} else {
				t.apply(line)
			}
		default:
		}
	}

	select {
	case <-t.done:
		return color.None, vision.ErrSourceClosed
	default:
	}

	if len(t.pending) > 0 {
		l := t.pending[0]
		t.pending = t.pending[1:]
		return l, nil
	}
	return t.sticky, nil
}

func (t *Text) apply(line string) {
	fields := strings.Fields(line)
	if len(fields) == 1 {
		switch strings.ToLower(fields[0]) {
		case "quit", "exit", "q":
			t.Close()
			return
		}
	}

	labels := make([]color.Label, 0, len(fields))
	for _, f := range fields {
		l := color.ParseLabel(f)
		if !l.IsNone() && !t.known(l) {
			log.Warn().Str("label", f).Msg("Unknown label ignored")
			continue
		}
		labels = append(labels, l)
	}

	switch {
	case len(fields) == 0:
		t.sticky = color.None
	case len(labels) == 0:
		// every token was unknown; keep the current state
	case len(labels) == 1 && len(fields) == 1:
		t.sticky = labels[0]
		log.Info().Str("label", t.sticky.String()).Msg("Simulated label")
	default:
		t.sticky = color.None
		t.pending = labels
		log.Info().Int("labels", len(labels)).Msg("Simulated label burst")
	}
}

// Close stops the source; Next returns vision.ErrSourceClosed afterwards.
func (t *Text) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}
