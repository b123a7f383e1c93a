// Package browser drives a Chromium page over the DevTools protocol and exposes
// it as a stage.Stage.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options configures the browser session
type Options struct {
	BaseURL    string // Application root; routes are resolved against it
	Width      int
	Height     int
	Headless   bool
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	Timeout    time.Duration

	// InjectMarkerStyle adds a default stylesheet for the highlight class to every document
	InjectMarkerStyle bool

	// Logger receives page diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Browser wraps the Rod browser and page for reuse
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	base    *url.URL
	logger  *slog.Logger
}

// Close cleans up browser resources
func (b *Browser) Close() {
	if b.page != nil {
		_ = b.page.Close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
}

// Page returns the underlying Rod page
func (b *Browser) Page() *rod.Page {
	return b.page
}

// URL returns the current location of the page.
func (b *Browser) URL() (string, error) {
	res, err := b.page.Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

// Launch starts Chromium, opens pageURL and waits for the application to render.
// pageURL may be relative to opts.BaseURL.
func Launch(ctx context.Context, pageURL string, opts Options) (*Browser, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	target, err := resolve(base, pageURL)
	if err != nil {
		return nil, err
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b := &Browser{browser: browser, base: base, logger: logger}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	b.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if opts.InjectMarkerStyle {
		if _, err := page.EvalOnNewDocument(markerStyleScript); err != nil {
			logger.Warn("marker style injection failed", "error", err)
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := page.Context(loadCtx).Navigate(target); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	b.settle(loadCtx)

	return b, nil
}

// settle waits for load, a short network-idle window, and the first interactive elements.
// SPAs need time to download bundles and hydrate; persistent connections must not hang it.
func (b *Browser) settle(ctx context.Context) {
	page := b.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		b.logger.Debug("page load wait interrupted", "error", err)
		return
	}
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	waitForInteractiveElements(ctx, b.page, 5*time.Second)
}

// waitForInteractiveElements polls until interactive elements appear or timeout
func waitForInteractiveElements(ctx context.Context, page *rod.Page, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		res, err := page.Context(ctx).Eval(`() => {
			let visible = 0;
			document.querySelectorAll('button, [role="button"], input:not([type="hidden"]), textarea, a[href]')
				.forEach(el => { if (el.offsetParent) visible++; });
			return visible;
		}`)
		if err == nil && res.Value.Int() > 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// resolve turns a route into an absolute URL on base. Absolute URLs pass through.
func resolve(base *url.URL, route string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(route))
	if err != nil {
		return "", fmt.Errorf("invalid route %q: %w", route, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if base == nil || base.Host == "" {
		return "", fmt.Errorf("route %q needs a base url", route)
	}
	return base.ResolveReference(ref).String(), nil
}
