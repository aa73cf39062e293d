// Package render drives a headless Chromium for pages whose prices only
// appear after JavaScript runs. The browser launches lazily on the first
// render; afterwards its tabs are shared through a pool.
package render

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/pricepeek/pricepeek/config"
	"github.com/pricepeek/pricepeek/models"
)

// maxPageUses retires a pooled tab after this many renders; long-lived
// tabs accumulate DOM and listener garbage.
const maxPageUses = 50

// Result is the captured document of one render.
type Result struct {
	HTML     string
	FinalURL string
}

// Engine manages the browser lifecycle and the tab pool. It is safe for
// concurrent use.
type Engine struct {
	cfg          config.RenderConfig
	defaultProxy string

	mu       sync.Mutex
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	launched bool
	useCount map[*rod.Page]int

	activePages atomic.Int32
}

// NewEngine prepares the engine without launching anything. Chromium
// starts on the first Render call.
func NewEngine(cfg config.RenderConfig, defaultProxy string) *Engine {
	return &Engine{
		cfg:          cfg,
		defaultProxy: defaultProxy,
		useCount:     make(map[*rod.Page]int),
	}
}

// ensureBrowser launches Chromium on first use. Not sync.Once on
// purpose: a failed launch must stay retryable on the next render.
func (e *Engine) ensureBrowser() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.launched {
		return nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.defaultProxy != "" {
		l = l.Proxy(e.defaultProxy)
	}

	// ── Stealth flags ───────────────────────────────────────────────
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
		return models.NewPeekError(models.ErrCodeRenderFailed, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return models.NewPeekError(models.ErrCodeRenderFailed, "failed to connect to browser", err)
	}

	maxPages := e.cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	e.browser = browser
	e.pagePool = rod.NewPagePool(maxPages)
	e.launched = true
	slog.Info("browser launched", "controlURL", controlURL, "maxPages", maxPages)
	return nil
}

// Render navigates the URL in a pooled tab and captures the settled DOM.
//
// Lifecycle:
//
//  1. Lazy browser launch
//  2. Timeout guard for the whole render
//  3. Acquire tab (stealth JS is installed at tab creation)
//  4. DEFER: release, returning the tab to the pool or retiring it
//  5. Regional headers + search-engine referer
//  6. Hijack mount, before navigation so blocking covers every request
//  7. Navigate and wait for the DOM to stabilise
//  8. Consent click, then the settle delay for late price swaps
//  9. Capture HTML + final URL
func (e *Engine) Render(ctx context.Context, pageURL string) (*Result, error) {
	if err := e.ensureBrowser(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	e.activePages.Add(1)
	defer e.activePages.Add(-1)

	page, err := e.pagePool.Get(e.newPage)
	if err != nil {
		// Restore the pool slot consumed by the failed create.
		e.pagePool.Put(nil)
		return nil, models.NewPeekError(models.ErrCodeRenderFailed, "failed to acquire page from pool", err)
	}

	healthy := false
	// Cleanup uses the original page reference, so it still works after
	// the request context has expired.
	defer func() { e.releasePage(page, healthy) }()

	e.applyHeaders(page, pageURL)

	router := setupHijack(page, e.cfg.BlockedResourceTypes)
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)

	if err := p.Navigate(pageURL); err != nil {
		return nil, categorizeRenderError(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("DOM did not stabilise, proceeding with current state",
			"url", pageURL, "error", err)
	}

	if label := clickConsent(p); label != "" {
		slog.Debug("consent clicked", "url", pageURL, "label", label)
		_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	if e.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, categorizeRenderError(ctx.Err(), "interrupted while settling")
		case <-time.After(e.cfg.SettleDelay):
		}
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeRenderError(err, "failed to capture page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = pageURL
	}

	healthy = true
	return &Result{HTML: rawHTML, FinalURL: finalURL}, nil
}

// newPage creates a fresh tab with the stealth script installed. One
// injection per tab; pooled reuse keeps it active across navigations.
func (e *Engine) newPage() (*rod.Page, error) {
	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without it", "error", err)
	}
	return page, nil
}

// releasePage returns the tab to the pool, retiring it after heavy reuse
// or a failed render.
func (e *Engine) releasePage(page *rod.Page, healthy bool) {
	e.mu.Lock()
	e.useCount[page]++
	uses := e.useCount[page]
	e.mu.Unlock()

	if !healthy || uses >= maxPageUses {
		e.retirePage(page)
		return
	}
	if err := page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup navigation failed, retiring page", "error", err)
		e.retirePage(page)
		return
	}
	e.pagePool.Put(page)
}

// retirePage closes the tab and frees its pool slot so the next Get
// creates a replacement.
func (e *Engine) retirePage(page *rod.Page) {
	e.mu.Lock()
	delete(e.useCount, page)
	e.mu.Unlock()
	_ = page.Close()
	e.pagePool.Put(nil)
}

// applyHeaders sets the regional Accept-Language and a search-engine
// referer for the upcoming navigation.
func (e *Engine) applyHeaders(page *rod.Page, pageURL string) {
	headers := map[string]string{}
	if e.cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = e.cfg.AcceptLanguage
	}
	if u, err := url.Parse(pageURL); err == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	if len(headers) == 0 {
		return
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// consentJS clicks the first control whose label matches the accept
// vocabulary of German and English consent dialogs, returning the
// clicked label or "". Prices on many shops only load after consent.
const consentJS = `() => {
	const words = ["alle akzeptieren", "akzeptieren", "zustimmen", "einverstanden",
		"accept all", "accept", "agree", "allow all", "ok"];
	const nodes = document.querySelectorAll('button, a, [role="button"], input[type="submit"], input[type="button"]');
	for (const el of nodes) {
		const label = ((el.innerText || el.value || "") + "").trim().toLowerCase();
		if (!label || label.length > 40) continue;
		for (const w of words) {
			const hit = w.length < 4 ? label === w : (label === w || label.includes(w));
			if (hit) { el.click(); return label; }
		}
	}
	return "";
}`

func clickConsent(p *rod.Page) string {
	return evalStringOrEmpty(p, consentJS)
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Active returns the number of tabs currently rendering.
func (e *Engine) Active() int {
	return int(e.activePages.Load())
}

// Stats returns a snapshot for the health endpoint.
func (e *Engine) Stats() models.BrowserStats {
	e.mu.Lock()
	running := e.launched
	e.mu.Unlock()
	return models.BrowserStats{
		Running:     running,
		MaxPages:    e.cfg.MaxPages,
		ActivePages: int(e.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Safe to call
// when the browser never launched.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.launched {
		return
	}
	slog.Info("render engine shutting down: draining page pool")
	e.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	e.browser.MustClose()
	e.launched = false
	slog.Info("render engine shutdown complete")
}

// categorizeRenderError wraps raw errors into PeekErrors so the API
// layer can map them to HTTP statuses.
func categorizeRenderError(err error, msg string) *models.PeekError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPeekError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPeekError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewPeekError(models.ErrCodeRenderFailed, msg, err)
	}
}
