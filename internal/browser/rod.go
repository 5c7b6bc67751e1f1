package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// DefaultNavigateTimeout bounds a single navigation.
const DefaultNavigateTimeout = 15 * time.Second

// RodConfig configures a RodOpener.
type RodConfig struct {
	// RemoteURL is the DevTools websocket of a running Chrome.
	// Empty launches a local, visible Chrome on first use.
	RemoteURL string
	// Headless launches the local Chrome without a window.
	Headless bool
	// NavigateTimeout bounds each navigation. Zero selects the default.
	NavigateTimeout time.Duration
}

// RodOpener drives a single Chrome tab. The browser is started lazily and
// restarted once if a navigation finds it gone.
type RodOpener struct {
	cfg RodConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// NewRodOpener creates an opener; nothing is launched until the first Open.
func NewRodOpener(cfg RodConfig) *RodOpener {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = DefaultNavigateTimeout
	}
	return &RodOpener{cfg: cfg}
}

// Open implements actions.Browser.
func (o *RodOpener) Open(ctx context.Context, raw string) error {
	if err := CheckURL(raw); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.navigate(ctx, raw)
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("Browser navigation failed, restarting browser")
		o.cleanup()
		err = o.navigate(ctx, raw)
	}
	return err
}

func (o *RodOpener) navigate(ctx context.Context, raw string) error {
	page, err := o.tab()
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(raw); err != nil {
		return fmt.Errorf("browser: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load: %w", err)
	}
	log.Debug().Str("url", raw).Msg("Browser navigated")
	return nil
}

// tab returns the reused page, connecting first if needed.
func (o *RodOpener) tab() (*rod.Page, error) {
	if o.page != nil {
		return o.page, nil
	}

	if o.browser == nil {
		wsURL := o.cfg.RemoteURL
		if wsURL == "" {
			l := launcher.New().Headless(o.cfg.Headless)
			u, err := l.Launch()
			if err != nil {
				return nil, fmt.Errorf("browser: launch: %w", err)
			}
			wsURL = u
			o.lnch = l
			log.Info().Str("url", wsURL).Msg("Launched local Chrome")
		}

		b := rod.New().ControlURL(wsURL)
		if err := b.Connect(); err != nil {
			o.cleanup()
			return nil, fmt.Errorf("browser: connect: %w", err)
		}
		o.browser = b
	}

	page, err := o.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	o.page = page
	return page, nil
}

func (o *RodOpener) cleanup() {
	o.page = nil
	if o.browser != nil {
		if err := o.browser.Close(); err != nil {
			log.Debug().Err(err).Msg("Browser close failed")
		}
		o.browser = nil
	}
	if o.lnch != nil {
		o.lnch.Cleanup()
		o.lnch = nil
	}
}

// Close shuts the browser down. A remote browser is disconnected, not closed.
func (o *RodOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.RemoteURL != "" {
		o.page = nil
		o.browser = nil
		return nil
	}
	o.cleanup()
	return nil
}
