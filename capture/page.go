package capture

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/croscope/croscope/models"
)

// collectAuto drives the headless browser to render the page, waits for it
// to settle, and captures a full-page screenshot plus the body's visible
// text.
//
// Lifecycle:
//
//  1. Timeout guard        – hard deadline on the entire operation
//  2. Acquire page         – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup       – about:blank + return to pool (leak prevention)
//  4. Stealth injection    – mask navigator.webdriver etc. (before navigation!)
//  5. Viewport + headers   – fixed viewport so layout breakpoints are stable
//  6. Hijack mount         – block ad/tracking requests (before navigation!)
//  7. Navigate + settle    – DOM stable, then a fixed settle delay so late
//     banners, fonts and lazy images land in the screenshot
//  8. Screenshot + text    – full-page PNG + document.body.innerText
//
// Steps 4-6 must precede navigation: stealth JS, viewport metrics and
// request interception only apply to navigations that happen after they are
// installed. The cleanup defer uses the original page reference (without the
// request context) so it succeeds even after the context expires.
func (c *Collector) collectAuto(ctx context.Context, req models.PageRequest, opts Options) (*models.CapturedPage, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// ── 2. Acquire page from pool ─────────────────────────────────────
	c.activePages.Add(1)
	defer c.activePages.Add(-1)

	page, acquireErr := c.pagePool.Get(func() (*rod.Page, error) {
		return c.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewAnalysisError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
		}
		c.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 5. Viewport + Google referer ──────────────────────────────────
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.captureCfg.ViewportWidth,
		Height:            c.captureCfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		slog.Warn("failed to set viewport, using browser default", "error", err)
	}

	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// ── 6. Mount hijack router (ad/tracker blocking only) ─────────────
	// Unlike a text scraper we must NOT block images, CSS or fonts —
	// the screenshot is the product.
	router := setupHijack(page, c.captureCfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 7. Navigate + settle ──────────────────────────────────────────
	p := page.Context(ctx)

	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to landing page failed")
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	// Fixed settle delay: hero videos, web fonts and consent banners keep
	// painting well after DOM stability.
	select {
	case <-time.After(opts.SettleDelay):
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "page did not settle before deadline")
	}

	// ── 8. Full-page screenshot + visible text ────────────────────────
	imageBytes, shotErr := p.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if shotErr != nil {
		return nil, categorizeError(shotErr, "failed to capture screenshot")
	}

	text := evalStringOrEmpty(p, `() => document.body ? document.body.innerText : ""`)

	if opts.CSSSelector != "" {
		// Selector scoping needs the HTML, not innerText.
		if rawHTML, htmlErr := p.HTML(); htmlErr == nil {
			text = c.shaper.FromHTML(rawHTML, req.URL, opts.CSSSelector)
		}
	}

	return &models.CapturedPage{
		ImageBytes:  imageBytes,
		Text:        text,
		SourceURL:   req.URL,
		DisplayName: req.DisplayName,
	}, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeError wraps raw errors into typed AnalysisErrors so failure
// records and the API layer can distinguish timeouts from navigation faults.
func categorizeError(err error, msg string) *models.AnalysisError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAnalysisError(models.ErrCodeCaptureTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewAnalysisError(models.ErrCodeCaptureTimeout, "capture canceled", err)
	default:
		return models.NewAnalysisError(models.ErrCodeNavigation, msg, err)
	}
}
