package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/cache"
	"github.com/pricepeek/pricepeek/extract"
	"github.com/pricepeek/pricepeek/fetch"
	"github.com/pricepeek/pricepeek/models"
	"github.com/pricepeek/pricepeek/monitoring"
)

// Peeker bundles the services a peek needs. The single-peek handler and
// the batch worker share one instance.
type Peeker struct {
	Fetcher   fetch.Fetcher
	Extractor *extract.Extractor
	Cache     *cache.Cache
	Metrics   *monitoring.Metrics

	// RenderEnabled is the server default for the rendered second pass;
	// a request's render field overrides it.
	RenderEnabled bool

	// MaxConcurrent bounds the batch worker pool.
	MaxConcurrent int
}

// Peek returns the handler for GET and POST /api/v1/peek.
//
// Flow:
//  1. Bind (query for GET, JSON for POST), apply defaults, validate.
//  2. Hard deadline for the whole peek from the request timeout.
//  3. Peeker.Do: cache → fetch ladder → extraction → store.
//  4. Status from the response's error code; 200 on success even when
//     no price was found.
func Peek(p *Peeker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PeekRequest
		var err error
		if c.Request.Method == http.MethodGet {
			err = c.ShouldBindQuery(&req)
		} else {
			err = c.ShouldBindJSON(&req)
		}
		if err == nil {
			req.Defaults()
			err = req.Validate()
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()

		resp := p.Do(ctx, &req)
		c.JSON(statusFor(resp), resp)
	}
}

// Do runs one complete peek: cache lookup, fetch ladder, extraction with
// the conditional rendered pass, cache store. It always returns a
// response; failures are carried in its Error field so the batch worker
// can store them like any other result.
func (p *Peeker) Do(ctx context.Context, req *models.PeekRequest) *models.PeekResponse {
	totalStart := time.Now()
	key := cache.Key(req.URL, p.renderPermitted(req), req.Selector, req.Description)

	// ── 1. Cache lookup ─────────────────────────────────────────────
	if p.Cache != nil && req.MaxAgeMs > 0 {
		if cached, hit := p.Cache.Get(key, req.MaxAgeMs); hit {
			p.Metrics.CacheEvent("hit")
			out := *cached
			out.CacheStatus = "hit"
			out.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
			if !req.Debug {
				out.Strategies = nil
				out.Candidates = nil
			}
			p.Metrics.ObservePeek(outcomeOf(&out), "cache", time.Since(totalStart))
			return &out
		}
		p.Metrics.CacheEvent("miss")
	}

	// ── 2. Fetch ladder ─────────────────────────────────────────────
	fetchStart := time.Now()
	fres, ferr := p.Fetcher.Fetch(ctx, &fetch.Request{
		URL:      req.URL,
		ProxyURL: req.ProxyURL,
		Timeout:  time.Duration(req.Timeout) * time.Second,
	})
	fetchMs := time.Since(fetchStart).Milliseconds()

	staticHTML := ""
	pageURL := req.URL
	transport := ""
	if ferr == nil {
		staticHTML = fres.HTML
		pageURL = fres.FinalURL
		transport = fres.Transport
	} else {
		slog.Warn("all transports failed, relying on rendered pass",
			"url", req.URL, "error", ferr)
	}
	p.Metrics.ObserveFetch(transport, ferr)

	// ── 3. Extraction (static pass + conditional rendered pass) ─────
	extractStart := time.Now()
	out, xerr := p.Extractor.Extract(ctx, staticHTML, pageURL, extract.Options{
		RenderPermitted:    p.renderPermitted(req),
		Selector:           req.Selector,
		IncludeDescription: req.Description,
	})
	extractMs := time.Since(extractStart).Milliseconds()

	timing := models.TimingInfo{
		TotalMs:   time.Since(totalStart).Milliseconds(),
		FetchMs:   fetchMs,
		ExtractMs: extractMs,
	}

	if xerr != nil {
		peekErr := categorizePeekError(xerr, ferr)
		slog.Error("peek failed", "url", req.URL, "code", peekErr.Code, "error", xerr)
		p.Metrics.ObservePeek("error", "none", time.Since(totalStart))
		return &models.PeekResponse{
			Success: false,
			Error:   peekErr.ToDetail(),
			Timing:  timing,
		}
	}

	// ── 4. Assemble response ────────────────────────────────────────
	if out.Pass == extract.PassRendered {
		transport = "render"
	}
	resp := &models.PeekResponse{
		Success:     true,
		Price:       out.Price,
		Title:       out.Title,
		Image:       out.Image,
		Description: out.Description,
		Pass:        out.Pass,
		FinalURL:    out.FinalURL,
		Transport:   transport,
		Timing:      timing,
	}
	if req.Debug {
		resp.Strategies = out.Strategies
		resp.Candidates = toCandidateDetails(out.Candidates)
	}

	// ── 5. Cache store ──────────────────────────────────────────────
	if p.Cache != nil {
		p.Cache.Set(key, resp)
		p.Metrics.CacheEvent("store")
		if req.MaxAgeMs > 0 {
			resp.CacheStatus = "miss"
		}
	}

	p.Metrics.ObservePeek(outcomeOf(resp), out.Pass, time.Since(totalStart))
	return resp
}

func (p *Peeker) renderPermitted(req *models.PeekRequest) bool {
	if req.Render != nil {
		return *req.Render
	}
	return p.RenderEnabled
}

// categorizePeekError settles the final error code: timeouts win, then a
// fetch-ladder failure explains the missing document, then whatever the
// pipeline reported.
func categorizePeekError(xerr, ferr error) *models.PeekError {
	switch {
	case errors.Is(xerr, context.DeadlineExceeded):
		return models.NewPeekError(models.ErrCodeTimeout, "peek timed out", xerr)
	case ferr != nil:
		return models.NewPeekError(models.ErrCodeFetchFailed, "all fetch transports failed", ferr)
	}
	var peekErr *models.PeekError
	if errors.As(xerr, &peekErr) {
		return peekErr
	}
	return models.NewPeekError(models.ErrCodeInternal, xerr.Error(), xerr)
}

func outcomeOf(resp *models.PeekResponse) string {
	if resp.Price != nil {
		return "price_found"
	}
	return "no_price"
}

func toCandidateDetails(cands []extract.PriceCandidate) []models.CandidateDetail {
	if len(cands) == 0 {
		return nil
	}
	details := make([]models.CandidateDetail, len(cands))
	for i, c := range cands {
		details[i] = models.CandidateDetail{Value: c.Value, Source: c.Source, Context: c.Context}
	}
	return details
}

// statusFor maps a response's error code to the HTTP status.
func statusFor(resp *models.PeekResponse) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	switch resp.Error.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetchFailed, models.ErrCodeRenderFailed, models.ErrCodeNoDocument:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
