package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/config"
)

// A near-zero refill rate makes the outcome depend only on the burst
// budget, not on test timing.
func TestRateLimit_BurstThenReject(t *testing.T) {
	r := gin.New()
	r.GET("/probe", RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, s := range statuses {
		if s != want[i] {
			t.Errorf("request %d: status = %d, want %d", i+1, s, want[i])
		}
	}
}

func TestRateLimit_IdentitiesAreIndependent(t *testing.T) {
	r := gin.New()
	r.GET("/probe", RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := do("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("first identity first request = %d, want 200", got)
	}
	if got := do("10.0.0.1:1234"); got != http.StatusTooManyRequests {
		t.Errorf("first identity second request = %d, want 429", got)
	}
	if got := do("10.0.0.2:1234"); got != http.StatusOK {
		t.Errorf("second identity unaffected by the first one's budget, got %d", got)
	}
}

// The auth middleware stores the API key in the context; the limiter
// must key its buckets on it rather than the caller's address.
func TestRateLimit_KeysOnAPIKeyWhenPresent(t *testing.T) {
	setKey := func(key string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set("api_key", key) }
	}

	r := gin.New()
	limit := RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	r.GET("/a", setKey("key-a"), limit, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", setKey("key-b"), limit, func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := do("/a"); got != http.StatusOK {
		t.Fatalf("key-a first request = %d, want 200", got)
	}
	if got := do("/a"); got != http.StatusTooManyRequests {
		t.Errorf("key-a second request = %d, want 429", got)
	}
	if got := do("/b"); got != http.StatusOK {
		t.Errorf("key-b blocked by key-a's bucket, got %d", got)
	}
}
