package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	xproxy "golang.org/x/net/proxy"
)

const (
	chromeUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	browserAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptLanguage = "de-DE,de;q=0.9,en;q=0.8"
	maxBodyBytes   = 10 << 20
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection; the stock fingerprint would negotiate h2, which Go's
// http.Transport cannot speak over a custom-dialed connection.
var (
	chromeH1Spec  utls.ClientHelloSpec
	chromeH1Ready bool
)

func init() {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
	chromeH1Ready = true
}

// Direct fetches pages straight from the origin with a Chrome TLS
// fingerprint and browser-like headers. Supports http(s) and socks5
// proxies; the per-request proxy wins over the configured default.
type Direct struct {
	defaultProxy string
}

// NewDirect creates the direct transport. defaultProxy may be empty.
func NewDirect(defaultProxy string) *Direct {
	return &Direct{defaultProxy: defaultProxy}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Fetch(ctx context.Context, req *Request) (*Result, error) {
	proxy := req.ProxyURL
	if proxy == "" {
		proxy = d.defaultProxy
	}

	// The transport is built per call so a per-request proxy never
	// leaks into another peek's connection pool.
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialRaw(ctx, network, addr, proxy)
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, proxy)
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	defer client.CloseIdleConnections()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("direct: build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", chromeUA)
	httpReq.Header.Set("Accept", browserAccept)
	httpReq.Header.Set("Accept-Language", acceptLanguage)
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("direct: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("direct: HTTP %d for %s", resp.StatusCode, req.URL)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTMLContentType(ct) {
		return nil, fmt.Errorf("direct: non-html content type %q for %s", ct, req.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("direct: read body: %w", err)
	}

	markup := string(body)
	slog.Debug("direct fetch ok",
		"url", req.URL,
		"status", resp.StatusCode,
		"title", sniffTitle(markup),
		"text_len", visibleTextLength(markup))

	return &Result{
		HTML:       markup,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Transport:  d.Name(),
	}, nil
}

// dialTLSChrome establishes a TLS connection with the Chrome fingerprint,
// optionally through a socks5 proxy.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	rawConn, err := dialRaw(ctx, network, addr, proxy)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	cfg := &utls.Config{ServerName: host}

	if !chromeH1Ready {
		// Spec generation failed; fall back to the stock fingerprint.
		tlsConn := utls.UClient(rawConn, cfg, utls.HelloChrome_Auto)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return nil, err
		}
		return tlsConn, nil
	}

	tlsConn := utls.UClient(rawConn, cfg, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("direct: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// dialRaw opens the TCP connection, negotiating socks5 when the proxy
// URL asks for it. http(s) proxies are handled by the transport itself.
func dialRaw(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "socks5" || u.Scheme == "socks5h") {
			socksDialer, err := xproxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("direct: socks5 proxy: %w", err)
			}
			if cd, ok := socksDialer.(xproxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return socksDialer.Dial(network, addr)
		}
	}

	return dialer.DialContext(ctx, network, addr)
}

// isHTMLContentType reports whether the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
