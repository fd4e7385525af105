package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/scraper"
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultLookupTimeout     = 2 * time.Second
	probeTimeout             = 5 * time.Second
)

// DefaultFlags are the Chrome switches used when running inside a container
// or a Lambda-like sandbox.
var DefaultFlags = []string{
	"no-sandbox",
	"disable-gpu",
	"disable-dev-shm-usage",
	"disable-dev-tools",
	"no-zygote",
}

// Config controls how the browser is started.
type Config struct {
	// Bin is the Chrome executable. Empty lets the launcher find or download one.
	Bin string
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
	// ShowWindow runs Chrome with a visible window.
	ShowWindow bool
	// Flags are extra switches, with or without leading dashes ("window-size=1280,800").
	Flags []string

	NavigationTimeout time.Duration
	LookupTimeout     time.Duration
}

// DefaultConfig returns a headless configuration with DefaultFlags.
func DefaultConfig() Config {
	return Config{
		Flags:             append([]string(nil), DefaultFlags...),
		NavigationTimeout: DefaultNavigationTimeout,
		LookupTimeout:     DefaultLookupTimeout,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return DefaultNavigationTimeout
	}
	return c.NavigationTimeout
}

func (c Config) lookupTimeout() time.Duration {
	if c.LookupTimeout <= 0 {
		return DefaultLookupTimeout
	}
	return c.LookupTimeout
}

// Session is a single-page browser session.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	mu     sync.Mutex
	closed bool
}

var _ scraper.Session = (*Session)(nil)

// Open starts or connects to a browser and opens a blank page.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := newLauncher(cfg).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	s.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	s.page = page

	logger.Info("Browser session opened", logger.Fields{
		"control_url": controlURL,
		"launched":    s.launcher != nil,
		"headless":    !cfg.ShowWindow,
	})
	return s, nil
}

func newLauncher(cfg Config) *launcher.Launcher {
	l := launcher.New().Headless(!cfg.ShowWindow)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	for _, raw := range cfg.Flags {
		name, val, hasVal := parseFlag(raw)
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// parseFlag splits "--name=value" into its parts.
func parseFlag(raw string) (name, val string, hasVal bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(trimmed, "=")
}

// Navigate loads url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.usable(); err != nil {
		return err
	}
	nctx, cancel := context.WithTimeout(ctx, s.cfg.navigationTimeout())
	defer cancel()

	// Navigate returns once the response headers arrive, so the old document
	// is still live until the new one has loaded.
	page := s.page.Context(nctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return s.classify(ctx, fmt.Errorf("navigating to %s: %w", url, err))
	}
	wait()
	if err := nctx.Err(); err != nil {
		return s.classify(ctx, fmt.Errorf("loading %s: %w", url, err))
	}
	return nil
}

// ElementText returns the visible text of the element with the given id. A
// missing element fails at once rather than waiting for it to appear.
func (s *Session) ElementText(ctx context.Context, id string) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}

	lctx, cancel := context.WithTimeout(ctx, s.cfg.lookupTimeout())
	defer cancel()

	el, err := s.page.Context(lctx).Sleeper(rod.NotFoundSleeper).Element("#" + id)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("element #%s: %w", id, err)
		}
		return "", s.classify(ctx, fmt.Errorf("finding #%s: %w", id, err))
	}

	text, err := el.Text()
	if err != nil {
		return "", s.classify(ctx, fmt.Errorf("reading #%s: %w", id, err))
	}
	return text, nil
}

// classify turns err into scraper.ErrSessionLost when the browser no longer
// answers.
func (s *Session) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	pctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if _, probeErr := s.browser.Context(pctx).Version(); probeErr != nil {
		logger.Error("Browser stopped responding", logger.Fields{"probe": probeErr.Error()}, err)
		return fmt.Errorf("%w: %w", scraper.ErrSessionLost, err)
	}
	return err
}

func (s *Session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.page == nil {
		return fmt.Errorf("%w: session closed", scraper.ErrSessionLost)
	}
	return nil
}

// Close closes the browser and, when it was launched by Open, stops the
// process and removes its profile. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil {
			err = fmt.Errorf("closing browser: %w", cerr)
		}
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
}
