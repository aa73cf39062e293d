// Package fetch retrieves product-page markup. Each transport implements
// Fetcher; the Ladder walks them from cheapest to heaviest and remembers
// per host which one delivered last.
package fetch

import (
	"context"
	"time"
)

// Request describes one page retrieval.
type Request struct {
	URL string

	// ProxyURL overrides the configured default proxy for this request.
	ProxyURL string

	// Timeout caps each ladder stage when it is shorter than the
	// configured stage budget. Zero means configured budgets apply.
	Timeout time.Duration
}

// Result is the outcome of a successful retrieval.
type Result struct {
	HTML       string
	StatusCode int
	FinalURL   string
	Transport  string
}

// Fetcher is a single transport.
type Fetcher interface {
	// Name returns the transport identifier (e.g. "direct", "gateway").
	Name() string

	// Fetch retrieves the page markup for the given request.
	Fetch(ctx context.Context, req *Request) (*Result, error)
}
