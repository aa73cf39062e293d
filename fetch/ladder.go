package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// LadderConfig carries the stage budgets.
type LadderConfig struct {
	// StageTimeout bounds the direct stage (each attempt).
	StageTimeout time.Duration

	// GatewayTimeout bounds the gateway stage. Zero falls back to
	// StageTimeout.
	GatewayTimeout time.Duration

	// RetryOnce grants the direct transport one extra attempt before
	// the ladder moves on.
	RetryOnce bool
}

// Ladder walks the transports in order until one delivers a document.
// The natural order is direct then gateway; a host whose last peek
// succeeded over a specific transport starts there instead.
type Ladder struct {
	direct  Fetcher
	gateway Fetcher // nil when no gateway is configured
	memory  *DomainMemory
	cfg     LadderConfig
}

// NewLadder assembles the ladder. gateway and memory may be nil.
func NewLadder(direct, gateway Fetcher, memory *DomainMemory, cfg LadderConfig) *Ladder {
	return &Ladder{
		direct:  direct,
		gateway: gateway,
		memory:  memory,
		cfg:     cfg,
	}
}

// Name implements Fetcher so callers can treat the whole ladder as one
// transport.
func (l *Ladder) Name() string { return "ladder" }

// Fetch runs the ladder. It returns the first stage's document, or the
// last stage error once every transport has been exhausted.
func (l *Ladder) Fetch(ctx context.Context, req *Request) (*Result, error) {
	host := hostOf(req.URL)
	remembered := ""
	if l.memory != nil {
		remembered = l.memory.Get(host)
	}

	var lastErr error
	for _, f := range l.stageOrder(host, remembered) {
		res, err := l.runStage(ctx, f, req)
		if err == nil {
			if l.memory != nil {
				l.memory.Set(host, f.Name())
			}
			if n := visibleTextLength(res.HTML); n < sparseTextThreshold {
				slog.Debug("fetched document is sparse",
					"url", req.URL, "transport", f.Name(), "text_len", n)
			}
			return res, nil
		}
		lastErr = err
		slog.Debug("transport failed", "transport", f.Name(), "url", req.URL, "error", err)
		if l.memory != nil && f.Name() == remembered {
			// The remembered transport stopped working for this host.
			l.memory.Delete(host)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("fetch: all transports failed for %s: %w", req.URL, lastErr)
}

// runStage executes one transport within its budget, granting the direct
// transport its single bounded retry.
func (l *Ladder) runStage(ctx context.Context, f Fetcher, req *Request) (*Result, error) {
	res, err := l.attempt(ctx, f, req)
	if err == nil {
		return res, nil
	}
	if l.cfg.RetryOnce && f == l.direct && ctx.Err() == nil {
		slog.Debug("direct fetch retry", "url", req.URL, "error", err)
		return l.attempt(ctx, f, req)
	}
	return nil, err
}

func (l *Ladder) attempt(ctx context.Context, f Fetcher, req *Request) (*Result, error) {
	budget := l.cfg.StageTimeout
	if f == l.gateway && l.cfg.GatewayTimeout > 0 {
		budget = l.cfg.GatewayTimeout
	}
	if req.Timeout > 0 && req.Timeout < budget {
		budget = req.Timeout
	}
	stageCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return f.Fetch(stageCtx, req)
}

// stageOrder returns the transports to try, moving a remembered
// transport to the front.
func (l *Ladder) stageOrder(host, remembered string) []Fetcher {
	stages := make([]Fetcher, 0, 2)
	stages = append(stages, l.direct)
	if l.gateway != nil {
		stages = append(stages, l.gateway)
	}
	if remembered == "" {
		return stages
	}
	for i := 1; i < len(stages); i++ {
		if stages[i].Name() == remembered {
			stages[0], stages[i] = stages[i], stages[0]
			slog.Debug("domain memory hit", "host", host, "transport", remembered)
			break
		}
	}
	return stages
}

// hostOf parses the hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
