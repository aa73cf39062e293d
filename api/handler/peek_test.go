package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/cache"
	"github.com/pricepeek/pricepeek/extract"
	"github.com/pricepeek/pricepeek/fetch"
	"github.com/pricepeek/pricepeek/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubFetcher serves one fixed document for every request. Batch
// workers hit it concurrently, so the call counter sits behind a mutex.
type stubFetcher struct {
	html string
	err  error

	mu    sync.Mutex
	calls int
}

func (s *stubFetcher) Name() string { return "direct" }

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubFetcher) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Result{
		HTML:       s.html,
		StatusCode: 200,
		FinalURL:   req.URL,
		Transport:  "direct",
	}, nil
}

const productPage = `<html><head>
<title>Kaffeemaschine | shop.example</title>
<meta property="og:image" content="/media/kaffee.jpg">
<script type="application/ld+json">
{"@type": "Product", "offers": {"@type": "Offer", "price": "129.00"}}
</script>
</head><body><h1>Kaffeemaschine</h1></body></html>`

func newTestPeeker(t *testing.T, f fetch.Fetcher) *Peeker {
	t.Helper()
	cc := cache.New(16, time.Hour)
	t.Cleanup(cc.Stop)
	return &Peeker{
		Fetcher:   f,
		Extractor: extract.New(extract.Config{}, nil),
		Cache:     cc,
	}
}

func TestPeek_GetQuery(t *testing.T) {
	p := newTestPeeker(t, &stubFetcher{html: productPage})
	r := gin.New()
	r.GET("/api/v1/peek", Peek(p))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/peek?url=https://shop.example/p/1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp models.PeekResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp.Error)
	}
	if resp.Price == nil || *resp.Price != 129.00 {
		t.Errorf("price = %v, want 129.00", resp.Price)
	}
	if resp.Image != "https://shop.example/media/kaffee.jpg" {
		t.Errorf("image = %q, want the absolutized og:image", resp.Image)
	}
	if resp.Pass != "static" {
		t.Errorf("pass = %q, want static", resp.Pass)
	}
	if resp.Transport != "direct" {
		t.Errorf("transport = %q, want direct", resp.Transport)
	}
	if len(resp.Candidates) != 0 {
		t.Errorf("candidates leaked into a non-debug response: %+v", resp.Candidates)
	}
}

func TestPeek_PostDebug(t *testing.T) {
	p := newTestPeeker(t, &stubFetcher{html: productPage})
	r := gin.New()
	r.POST("/api/v1/peek", Peek(p))

	body := `{"url": "https://shop.example/p/1", "debug": true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/peek", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp models.PeekResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Candidates) == 0 {
		t.Error("debug response carries no candidates")
	}
	if len(resp.Strategies) == 0 {
		t.Error("debug response carries no strategies")
	}
}

func TestPeek_InvalidInput(t *testing.T) {
	p := newTestPeeker(t, &stubFetcher{html: productPage})
	r := gin.New()
	r.GET("/api/v1/peek", Peek(p))

	for _, target := range []string{
		"/api/v1/peek",                             // url missing
		"/api/v1/peek?url=ftp://shop.example",      // bad scheme
		"/api/v1/peek?url=https://x&timeout=999",   // timeout out of range
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestPeek_FetchFailureWithoutRender(t *testing.T) {
	p := newTestPeeker(t, &stubFetcher{err: errors.New("connection refused")})
	r := gin.New()
	r.GET("/api/v1/peek", Peek(p))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/peek?url=https://shop.example/p/1", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body = %s", w.Code, w.Body.String())
	}

	var resp models.PeekResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeFetchFailed {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeFetchFailed)
	}
}

func TestDo_CacheRoundTrip(t *testing.T) {
	stub := &stubFetcher{html: productPage}
	p := newTestPeeker(t, stub)

	first := p.Do(context.Background(), &models.PeekRequest{
		URL: "https://shop.example/p/1", Timeout: 30,
	})
	if !first.Success || first.CacheStatus != "" {
		t.Fatalf("first response = %+v, want success without cache involvement", first)
	}

	second := p.Do(context.Background(), &models.PeekRequest{
		URL: "https://shop.example/p/1", Timeout: 30, MaxAgeMs: 60_000,
	})
	if second.CacheStatus != "hit" {
		t.Errorf("cache status = %q, want hit", second.CacheStatus)
	}
	if got := stub.callCount(); got != 1 {
		t.Errorf("fetcher called %d times, want 1 (second peek served from cache)", got)
	}
	if second.Price == nil || *second.Price != 129.00 {
		t.Errorf("cached price = %v, want 129.00", second.Price)
	}
}

func TestDo_MaxAgeMissStoresAndMarks(t *testing.T) {
	p := newTestPeeker(t, &stubFetcher{html: productPage})

	resp := p.Do(context.Background(), &models.PeekRequest{
		URL: "https://shop.example/p/1", Timeout: 30, MaxAgeMs: 60_000,
	})
	if resp.CacheStatus != "miss" {
		t.Errorf("cache status = %q, want miss on the first opted-in peek", resp.CacheStatus)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeFetchFailed, http.StatusBadGateway},
		{models.ErrCodeRenderFailed, http.StatusBadGateway},
		{models.ErrCodeNoDocument, http.StatusBadGateway},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		resp := &models.PeekResponse{Error: &models.ErrorDetail{Code: tt.code}}
		if got := statusFor(resp); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}

	if got := statusFor(&models.PeekResponse{Success: true}); got != http.StatusOK {
		t.Errorf("statusFor without error = %d, want 200", got)
	}
}
