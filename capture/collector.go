package capture

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/content"
	"github.com/croscope/croscope/models"
)

// Options are the per-batch capture settings.
type Options struct {
	// Timeout is the deadline for one page's capture.
	Timeout time.Duration

	// SettleDelay is the pause after navigation before the screenshot.
	SettleDelay time.Duration

	// Stealth enables anti-bot-detection evasions.
	Stealth bool

	// FetchManualText enables the best-effort HTTP text fetch for
	// manual-mode pages.
	FetchManualText bool

	// CSSSelector confines extracted page text when non-empty.
	CSSSelector string
}

// Collector produces the screenshot bytes and visible text for a page,
// either by driving the shared headless browser or by serving a previously
// uploaded screenshot. It manages the global browser lifecycle and the page
// pool and is safe for concurrent use.
type Collector struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	captureCfg  config.CaptureConfig
	manual      *ManualStore
	httpFetcher *httpFetcher
	shaper      *content.Shaper
	activePages atomic.Int32
}

// NewCollector launches a headless browser and initialises the reusable
// page pool and the manual screenshot store.
func NewCollector(browserCfg config.BrowserConfig, captureCfg config.CaptureConfig) (*Collector, error) {
	manual, err := NewManualStore(captureCfg.ManualDir)
	if err != nil {
		return nil, models.NewAnalysisError(
			models.ErrCodeSystem,
			"failed to initialise manual screenshot store",
			err,
		)
	}

	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAnalysisError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewAnalysisError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Collector{
		browser:     browser,
		pagePool:    pool,
		browserCfg:  browserCfg,
		captureCfg:  captureCfg,
		manual:      manual,
		httpFetcher: newHTTPFetcher(browserCfg.DefaultProxy),
		shaper:      content.NewShaper(),
	}, nil
}

// Manual exposes the uploaded-screenshot store (used by the upload handler
// and for manual-mode detection).
func (c *Collector) Manual() *ManualStore {
	return c.manual
}

// Collect produces the CapturedPage for one request, dispatching on the
// request's capture mode.
func (c *Collector) Collect(ctx context.Context, req models.PageRequest, opts Options) (*models.CapturedPage, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = c.captureCfg.DefaultTimeout
	}
	if opts.Timeout > c.captureCfg.MaxTimeout {
		opts.Timeout = c.captureCfg.MaxTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = c.captureCfg.SettleDelay
	}

	switch req.Mode {
	case models.ModeManual:
		return c.collectManual(ctx, req, opts)
	default:
		return c.collectAuto(ctx, req, opts)
	}
}

// collectManual serves a previously uploaded screenshot. Page text is empty
// unless the best-effort HTTP fetch is enabled — manual mode exists for
// bot-protected sites, so the fetch often fails and that is fine.
func (c *Collector) collectManual(ctx context.Context, req models.PageRequest, opts Options) (*models.CapturedPage, error) {
	imageBytes, err := c.manual.Load(req.DisplayName)
	if err != nil {
		return nil, err
	}

	text := ""
	if opts.FetchManualText {
		if html, fetchErr := c.httpFetcher.fetch(ctx, req.URL, ""); fetchErr != nil {
			slog.Warn("manual text fetch failed, continuing without text",
				"url", req.URL, "error", fetchErr)
		} else {
			text = c.shaper.FromHTML(string(html), req.URL, opts.CSSSelector)
		}
	}

	return &models.CapturedPage{
		ImageBytes:  imageBytes,
		Text:        text,
		SourceURL:   req.URL,
		DisplayName: req.DisplayName,
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (c *Collector) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    c.browserCfg.MaxPages,
		ActivePages: int(c.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (c *Collector) Close() {
	slog.Info("collector shutting down: draining page pool")
	c.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("collector shutting down: closing browser")
	c.browser.MustClose()
	slog.Info("collector shutdown complete")
}
