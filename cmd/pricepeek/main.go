package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/pricepeek/pricepeek/api"
	"github.com/pricepeek/pricepeek/api/handler"
	"github.com/pricepeek/pricepeek/cache"
	"github.com/pricepeek/pricepeek/config"
	"github.com/pricepeek/pricepeek/extract"
	"github.com/pricepeek/pricepeek/fetch"
	"github.com/pricepeek/pricepeek/monitoring"
	"github.com/pricepeek/pricepeek/render"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pricepeek starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"renderEnabled", cfg.Render.Enabled,
	)

	// ── 3. Static fetch ladder ──────────────────────────────────────
	memory := fetch.NewDomainMemory(cfg.Fetch.MemoryTTL)
	defer memory.Stop()

	var gateway fetch.Fetcher
	if cfg.Fetch.GatewayURL != "" {
		gateway = fetch.NewGateway(cfg.Fetch.GatewayURL)
		slog.Info("gateway transport enabled", "url", cfg.Fetch.GatewayURL)
	}
	ladder := fetch.NewLadder(fetch.NewDirect(cfg.Fetch.DefaultProxy), gateway, memory, fetch.LadderConfig{
		StageTimeout:   cfg.Fetch.Timeout,
		GatewayTimeout: cfg.Fetch.GatewayTimeout,
		RetryOnce:      cfg.Fetch.RetryOnce,
	})

	// ── 4. Render engine ────────────────────────────────────────────
	// The browser launches lazily on the first render, so a disabled
	// or never-needed engine costs nothing at startup.
	var eng *render.Engine
	var renderFn extract.RenderFunc
	if cfg.Render.Enabled {
		eng = render.NewEngine(cfg.Render, cfg.Fetch.DefaultProxy)
		defer eng.Close()

		// This closure keeps extract free of a render import.
		renderFn = func(ctx context.Context, pageURL string) (*extract.RenderedDocument, error) {
			res, err := eng.Render(ctx, pageURL)
			if err != nil {
				return nil, err
			}
			return &extract.RenderedDocument{HTML: res.HTML, FinalURL: res.FinalURL}, nil
		}
	}

	// ── 5. Extraction pipeline ──────────────────────────────────────
	extractor := extract.New(extract.Config{
		MinPlausible:     cfg.Extract.MinPlausible,
		MaxPlausible:     cfg.Extract.MaxPlausible,
		ContextRadius:    cfg.Extract.ContextRadius,
		DescriptionLimit: cfg.Extract.DescriptionLimit,
	}, renderFn)

	// ── 6. Response cache and metrics ───────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Stop()

	var activePages func() int
	if eng != nil {
		activePages = eng.Active
	}
	metrics := monitoring.NewMetrics(activePages)

	// ── 7. HTTP API ─────────────────────────────────────────────────
	peeker := &handler.Peeker{
		Fetcher:       ladder,
		Extractor:     extractor,
		Cache:         cc,
		Metrics:       metrics,
		RenderEnabled: cfg.Render.Enabled,
		MaxConcurrent: cfg.Render.MaxPages,
	}
	startTime := time.Now()
	router := api.NewRouter(peeker, eng, cfg, cc, startTime)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "Authorization"},
	})

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: corsWrapper.Handler(router),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("pricepeek stopped")
}

// initLogger configures the global slog handler from LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
