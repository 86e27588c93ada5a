package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/77nimesh/GraysWebScraping/identity"
	"github.com/77nimesh/GraysWebScraping/models"
)

// Result is the rendered snapshot of one listing page.
type Result struct {
	// HTML is the post-render page HTML.
	HTML string

	// Title is the page title.
	Title string

	// FinalURL is the URL after any redirects.
	FinalURL string
}

// Fetch renders the page inside a fresh incognito context with the given
// identity applied.
//
// Lifecycle:
//
//  1. Timeout guard     – navigation timeout bounds the whole fetch
//  2. Incognito context – cookie/storage isolation from sibling fetches
//  3. DEFER: teardown   – page close + context disposal on every exit path
//  4. Stealth injection – mask navigator.webdriver etc. (before navigation!)
//  5. Identity          – UA, viewport, scale, locale, timezone overrides
//  6. Hijack mount      – block images/CSS/fonts/media (before navigation!)
//  7. Navigate + load   – triggers the page load
//  8. Readiness wait    – short wait for the minimal content marker
//  9. Snapshot          – page HTML + document.title
//
// Steps 4-6 must happen before step 7: stealth JS, emulation overrides, and
// resource blocking only apply to navigations that happen after they are
// installed.
func (s *Scraper) Fetch(ctx context.Context, targetURL string, id identity.Identity) (*Result, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()

	// ── 2. Isolated incognito context ─────────────────────────────────
	ic, err := s.browser.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, targetURL,
			"failed to create incognito context", err)
	}
	page, err := ic.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: ic.BrowserContextID}.Call(s.browser)
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, targetURL,
			"failed to open page", err)
	}

	// ── 3. Teardown on every exit path ────────────────────────────────
	// Uses the original page reference (no request context), so cleanup
	// still succeeds after the fetch deadline expires.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("page close failed", "url", targetURL, "error", closeErr)
		}
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: ic.BrowserContextID}.Call(s.browser)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"url", targetURL, "error", evalErr)
	}

	// ── 5. Apply the request identity ─────────────────────────────────
	if err := applyIdentity(page, id); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, targetURL,
			"failed to apply request identity", err)
	}

	// ── 5b. Plausible Referer unless already on the site ──────────────
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// ── 6. Mount hijack router (blocks Image/Stylesheet/Font/Media) ───
	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 7. Navigate and wait for the load event ───────────────────────
	p := page.Context(ctx)
	if navErr := p.Navigate(targetURL); navErr != nil {
		return nil, categorizeError(navErr, targetURL, "navigation to listing failed")
	}
	if loadErr := p.WaitLoad(); loadErr != nil {
		return nil, categorizeError(loadErr, targetURL, "page load did not complete")
	}

	// ── 8. Readiness wait for the minimal content marker ──────────────
	readyPage := p.Timeout(s.scraperCfg.ReadyTimeout)
	if _, readyErr := readyPage.Element(s.scraperCfg.ReadySelector); readyErr != nil {
		return nil, categorizeError(readyErr, targetURL, "content marker never appeared")
	}

	// ── 9. Snapshot rendered HTML, title, final URL ───────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, targetURL, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	return &Result{HTML: rawHTML, Title: title, FinalURL: finalURL}, nil
}

// applyIdentity installs the per-fetch identity via CDP emulation overrides.
func applyIdentity(page *rod.Page, id identity.Identity) error {
	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: id.Locale,
	}).Call(page); err != nil {
		return err
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             id.ViewportWidth,
		Height:            id.ViewportHeight,
		DeviceScaleFactor: id.ScaleFactor,
		Mobile:            false,
	}).Call(page); err != nil {
		return err
	}
	if err := (proto.EmulationSetTimezoneOverride{
		TimezoneID: id.Timezone,
	}).Call(page); err != nil {
		return err
	}
	return proto.EmulationSetLocaleOverride{Locale: id.Locale}.Call(page)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeError wraps raw errors into typed ScrapeErrors so the aggregator
// can tell timeouts from navigation failures in the run summary.
func categorizeError(err error, url, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, url, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, url, "fetch canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, url, msg, err)
	}
}
