// Package browser opens URLs for the open_url action, either through the
// desktop's default handler or a Chrome instance driven over CDP.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/input"
)

// ErrInvalidURL is returned for URLs that are not absolute http, https or file URLs.
var ErrInvalidURL = errors.New("invalid url")

// CheckURL validates raw before it is handed to a browser.
func CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
}

// SystemOpener hands URLs to the platform's default handler.
type SystemOpener struct {
	runner input.Runner
	goos   string
}

// NewSystemOpener creates an opener for the running platform.
func NewSystemOpener(runner input.Runner) *SystemOpener {
	return &SystemOpener{runner: runner, goos: runtime.GOOS}
}

// Command returns the program and arguments used to open raw.
func (o *SystemOpener) Command(raw string) (string, []string) {
	switch o.goos {
	case "darwin":
		return "open", []string{raw}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", raw}
	default:
		return "xdg-open", []string{raw}
	}
}

// Open implements actions.Browser.
func (o *SystemOpener) Open(ctx context.Context, raw string) error {
	if err := CheckURL(raw); err != nil {
		return err
	}
	name, args := o.Command(raw)
	log.Debug().Str("url", raw).Str("opener", name).Msg("Opening URL")
	return o.runner.Run(ctx, name, args...)
}
