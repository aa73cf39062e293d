package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Gateway fetches through a render-capable HTTP gateway, for origins
// that refuse direct fetches. The gateway receives the target URL
// appended to its base URL and answers with the page markup. The
// gateway does its own origin fetching, so this hop is plain net/http.
type Gateway struct {
	baseURL string
	client  *http.Client
}

// NewGateway creates the gateway transport for the given base URL.
func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		client:  &http.Client{},
	}
}

func (g *Gateway) Name() string { return "gateway" }

func (g *Gateway) Fetch(ctx context.Context, req *Request) (*Result, error) {
	endpoint := g.baseURL + req.URL

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/html, text/plain;q=0.9")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway: HTTP %d for %s", resp.StatusCode, req.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: read body: %w", err)
	}

	return &Result{
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   req.URL,
		Transport:  g.Name(),
	}, nil
}
