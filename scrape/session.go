package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// desktopUA is the fingerprint presented to chain sites. Kept close to a
// current real Chrome build; sites fingerprint stale UA strings.
const desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session is a scoped browser resource: one Chrome per Collect call,
// launched with anti-automation flags and closed on every exit path.
type Session struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	logger  *slog.Logger
}

// NewSession launches Chrome and connects to it. Callers must defer
// Close; leaking Chrome processes is how collection hosts fall over.
func NewSession(ctx context.Context, headful bool, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := launcher.New().
		Headless(!headful).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("scrape: launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("scrape: connect chrome: %w", err)
	}

	logger.Debug("scrape: session started", "headful", headful)
	return &Session{browser: b, lnch: l, logger: logger}, nil
}

// Page opens a stealth page with an es-CL fingerprint.
func (s *Session) Page(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("scrape: stealth page: %w", err)
	}
	page = page.Context(ctx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      desktopUA,
		AcceptLanguage: "es-CL,es;q=0.9",
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("scrape: set user agent: %w", err)
	}
	return page, nil
}

// Close shuts down Chrome and its launcher. Safe to call once per
// session, including after a failed Page call.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	if err != nil {
		return fmt.Errorf("scrape: close session: %w", err)
	}
	return nil
}

// sleepJitter pauses for base plus up to one second of jitter. Uniform
// inter-request timing is itself a bot signal. Returns early when the
// context is cancelled.
func sleepJitter(ctx context.Context, base time.Duration) {
	d := base + time.Duration(rand.Intn(1000))*time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// navigate goes to a URL and waits for the load event, tolerating a slow
// or never-firing load on heavy SPA pages.
func navigate(ctx context.Context, page *rod.Page, url string, timeout time.Duration, logger *slog.Logger) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		logger.Debug("scrape: wait load timeout", "url", url, "error", err)
	}
	return nil
}
