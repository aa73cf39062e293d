package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		headers    map[string]string
		wantStatus int
		wantKey    string
	}{
		{
			name:       "open access without configured keys",
			keys:       nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			keys:       []string{"k1"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			keys:       []string{"k1"},
			headers:    map[string]string{"X-API-Key": "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "x-api-key header",
			keys:       []string{"k1", "k2"},
			headers:    map[string]string{"X-API-Key": "k2"},
			wantStatus: http.StatusOK,
			wantKey:    "k2",
		},
		{
			name:       "bearer token",
			keys:       []string{"k1"},
			headers:    map[string]string{"Authorization": "Bearer k1"},
			wantStatus: http.StatusOK,
			wantKey:    "k1",
		},
		{
			name:       "x-api-key wins over bearer",
			keys:       []string{"k1"},
			headers:    map[string]string{"X-API-Key": "k1", "Authorization": "Bearer other"},
			wantStatus: http.StatusOK,
			wantKey:    "k1",
		},
		{
			name:       "bearer with wrong scheme ignored",
			keys:       []string{"k1"},
			headers:    map[string]string{"Authorization": "Basic k1"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKey string
			r := gin.New()
			r.GET("/probe", Auth(tt.keys), func(c *gin.Context) {
				gotKey = c.GetString("api_key")
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && gotKey != tt.wantKey {
				t.Errorf("api_key in context = %q, want %q", gotKey, tt.wantKey)
			}
		})
	}
}

func TestAuth_UnauthorizedBody(t *testing.T) {
	r := gin.New()
	r.GET("/probe", Auth([]string{"secret"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-API-Key", "wrong")
	r.ServeHTTP(w, req)

	var resp models.PeekResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Error("success = true on a rejected request")
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeUnauthorized {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeUnauthorized)
	}
}
