package config

import (
	"reflect"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so an inherited environment
// cannot leak into the assertions. envOr treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PRICEPEEK_HOST", "PRICEPEEK_PORT", "PRICEPEEK_MODE",
		"PRICEPEEK_FETCH_TIMEOUT", "PRICEPEEK_FETCH_RETRY",
		"PRICEPEEK_GATEWAY_URL", "PRICEPEEK_GATEWAY_TIMEOUT",
		"PRICEPEEK_PROXY", "PRICEPEEK_MEMORY_TTL",
		"PRICEPEEK_RENDER_ENABLED", "PRICEPEEK_HEADLESS",
		"PRICEPEEK_MAX_PAGES", "PRICEPEEK_RENDER_TIMEOUT",
		"PRICEPEEK_SETTLE_DELAY", "PRICEPEEK_NO_SANDBOX",
		"PRICEPEEK_BROWSER_BIN", "PRICEPEEK_BLOCKED_RESOURCES",
		"PRICEPEEK_ACCEPT_LANGUAGE",
		"PRICEPEEK_PRICE_MIN", "PRICEPEEK_PRICE_MAX",
		"PRICEPEEK_CONTEXT_RADIUS", "PRICEPEEK_DESCRIPTION_LIMIT",
		"PRICEPEEK_AUTH_ENABLED", "PRICEPEEK_API_KEYS",
		"PRICEPEEK_RATE_RPS", "PRICEPEEK_RATE_BURST",
		"PRICEPEEK_CACHE_MAX_ENTRIES", "PRICEPEEK_CACHE_TTL",
		"PRICEPEEK_CORS_ORIGINS",
		"PRICEPEEK_LOG_LEVEL", "PRICEPEEK_LOG_FORMAT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 || cfg.Server.Mode != "release" {
		t.Errorf("server = %+v, want 0.0.0.0:8080 release", cfg.Server)
	}
	if cfg.Fetch.Timeout != 12*time.Second {
		t.Errorf("fetch timeout = %v, want 12s", cfg.Fetch.Timeout)
	}
	if !cfg.Fetch.RetryOnce {
		t.Error("fetch retry disabled by default")
	}
	if cfg.Fetch.GatewayURL != "" {
		t.Errorf("gateway url = %q, want empty (stage disabled)", cfg.Fetch.GatewayURL)
	}
	if cfg.Fetch.MemoryTTL != 30*time.Minute {
		t.Errorf("memory ttl = %v, want 30m", cfg.Fetch.MemoryTTL)
	}
	if !cfg.Render.Enabled || !cfg.Render.Headless {
		t.Errorf("render = %+v, want enabled headless", cfg.Render)
	}
	if cfg.Render.MaxPages != 5 || cfg.Render.SettleDelay != 1300*time.Millisecond {
		t.Errorf("render pool = %d pages, settle %v; want 5 and 1.3s",
			cfg.Render.MaxPages, cfg.Render.SettleDelay)
	}
	if want := []string{"Image", "Font", "Media"}; !reflect.DeepEqual(cfg.Render.BlockedResourceTypes, want) {
		t.Errorf("blocked resources = %v, want %v", cfg.Render.BlockedResourceTypes, want)
	}
	if cfg.Extract.MinPlausible != 10 || cfg.Extract.MaxPlausible != 100000 {
		t.Errorf("plausibility band = [%v, %v], want [10, 100000]",
			cfg.Extract.MinPlausible, cfg.Extract.MaxPlausible)
	}
	if cfg.Extract.ContextRadius != 60 || cfg.Extract.DescriptionLimit != 500 {
		t.Errorf("extract = %+v, want radius 60 and description limit 500", cfg.Extract)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKeys != nil {
		t.Errorf("auth = %+v, want enabled with no keys", cfg.Auth)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Errorf("rate limit = %+v, want 5 rps burst 10", cfg.RateLimit)
	}
	if cfg.Cache.MaxEntries != 1000 || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v, want 1000 entries with 1h ttl", cfg.Cache)
	}
	if want := []string{"*"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Errorf("cors origins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v, want info json", cfg.Log)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICEPEEK_PORT", "9090")
	t.Setenv("PRICEPEEK_FETCH_TIMEOUT", "5s")
	t.Setenv("PRICEPEEK_RENDER_ENABLED", "false")
	t.Setenv("PRICEPEEK_API_KEYS", "alpha, beta,,gamma")
	t.Setenv("PRICEPEEK_PRICE_MIN", "1.5")
	t.Setenv("PRICEPEEK_BLOCKED_RESOURCES", "Image,Stylesheet")
	t.Setenv("PRICEPEEK_LOG_FORMAT", "text")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("fetch timeout = %v, want 5s", cfg.Fetch.Timeout)
	}
	if cfg.Render.Enabled {
		t.Error("render still enabled after override")
	}
	if want := []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(cfg.Auth.APIKeys, want) {
		t.Errorf("api keys = %v, want %v (trimmed, empties dropped)", cfg.Auth.APIKeys, want)
	}
	if cfg.Extract.MinPlausible != 1.5 {
		t.Errorf("min plausible = %v, want 1.5", cfg.Extract.MinPlausible)
	}
	if want := []string{"Image", "Stylesheet"}; !reflect.DeepEqual(cfg.Render.BlockedResourceTypes, want) {
		t.Errorf("blocked resources = %v, want %v", cfg.Render.BlockedResourceTypes, want)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want text", cfg.Log.Format)
	}
}

func TestLoad_MalformedValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICEPEEK_PORT", "not-a-port")
	t.Setenv("PRICEPEEK_FETCH_RETRY", "maybe")
	t.Setenv("PRICEPEEK_CACHE_TTL", "soon")
	t.Setenv("PRICEPEEK_RATE_RPS", "fast")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if !cfg.Fetch.RetryOnce {
		t.Error("retry = false, want default true")
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("cache ttl = %v, want default 1h", cfg.Cache.TTL)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("rps = %v, want default 5", cfg.RateLimit.RequestsPerSecond)
	}
}
