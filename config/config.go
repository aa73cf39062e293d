package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Render    RenderConfig
	Extract   ExtractConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// FetchConfig controls the static fetch ladder.
type FetchConfig struct {
	// Timeout is the deadline for one direct fetch attempt.
	Timeout time.Duration // default: 12s

	// RetryOnce re-attempts a failed direct fetch a single time before
	// falling through to the gateway.
	RetryOnce bool // default: true

	// GatewayURL is the base URL of the text-extraction gateway used as
	// the static fallback transport. Empty disables the gateway stage.
	GatewayURL string

	// GatewayTimeout is the deadline for one gateway fetch.
	GatewayTimeout time.Duration // default: 15s

	// DefaultProxy is the default proxy URL for direct fetches.
	DefaultProxy string

	// MemoryTTL is how long a per-host transport preference is kept.
	MemoryTTL time.Duration // default: 30m
}

// RenderConfig controls the Rod browser instance.
type RenderConfig struct {
	// Enabled permits the rendered second pass by default. A request
	// may still override this in either direction.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// Timeout is the deadline for one full render pass.
	Timeout time.Duration // default: 22s

	// SettleDelay is the fixed wait after DOM-stable before capturing
	// markup, giving client-side price widgets time to populate.
	SettleDelay time.Duration // default: 1300ms

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types aborted during render.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// AcceptLanguage is sent with rendered navigations so regional
	// price formats are served.
	AcceptLanguage string // default: "de-DE,de;q=0.9,en;q=0.8"
}

// ExtractConfig tunes the extraction pipeline.
type ExtractConfig struct {
	// MinPlausible / MaxPlausible bound the price plausibility band
	// used by arbitration.
	MinPlausible float64 // default: 10
	MaxPlausible float64 // default: 100000

	// ContextRadius is how many characters of surrounding text are
	// captured around body-text matches.
	ContextRadius int // default: 60

	// DescriptionLimit caps the markdown description length in runes.
	DescriptionLimit int // default: 500
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the peek response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000

	// TTL is the age at which the cleanup loop drops an entry.
	TTL time.Duration // default: 1h
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	AllowedOrigins []string // default: ["*"]
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICEPEEK_HOST", "0.0.0.0"),
			Port: envIntOr("PRICEPEEK_PORT", 8080),
			Mode: envOr("PRICEPEEK_MODE", "release"),
		},
		Fetch: FetchConfig{
			Timeout:        envDurationOr("PRICEPEEK_FETCH_TIMEOUT", 12*time.Second),
			RetryOnce:      envBoolOr("PRICEPEEK_FETCH_RETRY", true),
			GatewayURL:     os.Getenv("PRICEPEEK_GATEWAY_URL"),
			GatewayTimeout: envDurationOr("PRICEPEEK_GATEWAY_TIMEOUT", 15*time.Second),
			DefaultProxy:   os.Getenv("PRICEPEEK_PROXY"),
			MemoryTTL:      envDurationOr("PRICEPEEK_MEMORY_TTL", 30*time.Minute),
		},
		Render: RenderConfig{
			Enabled:     envBoolOr("PRICEPEEK_RENDER_ENABLED", true),
			Headless:    envBoolOr("PRICEPEEK_HEADLESS", true),
			MaxPages:    envIntOr("PRICEPEEK_MAX_PAGES", 5),
			Timeout:     envDurationOr("PRICEPEEK_RENDER_TIMEOUT", 22*time.Second),
			SettleDelay: envDurationOr("PRICEPEEK_SETTLE_DELAY", 1300*time.Millisecond),
			NoSandbox:   envBoolOr("PRICEPEEK_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("PRICEPEEK_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("PRICEPEEK_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			AcceptLanguage: envOr("PRICEPEEK_ACCEPT_LANGUAGE", "de-DE,de;q=0.9,en;q=0.8"),
		},
		Extract: ExtractConfig{
			MinPlausible:     envFloatOr("PRICEPEEK_PRICE_MIN", 10),
			MaxPlausible:     envFloatOr("PRICEPEEK_PRICE_MAX", 100000),
			ContextRadius:    envIntOr("PRICEPEEK_CONTEXT_RADIUS", 60),
			DescriptionLimit: envIntOr("PRICEPEEK_DESCRIPTION_LIMIT", 500),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICEPEEK_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRICEPEEK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICEPEEK_RATE_RPS", 5.0),
			Burst:             envIntOr("PRICEPEEK_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PRICEPEEK_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("PRICEPEEK_CACHE_TTL", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("PRICEPEEK_CORS_ORIGINS", []string{"*"}),
		},
		Log: LogConfig{
			Level:  envOr("PRICEPEEK_LOG_LEVEL", "info"),
			Format: envOr("PRICEPEEK_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
