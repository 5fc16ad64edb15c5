package mirror

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Prober measures how long one GET of url takes. A non-nil error means the
// target is unreachable for selection purposes.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) (time.Duration, error)
}

// HTTPProber probes with a real HTTP client.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber builds a prober. When upstreamSocks5 (host:port) is set every
// probe is dialed through that SOCKS5 proxy.
func NewHTTPProber(upstreamSocks5 string) (*HTTPProber, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if upstreamSocks5 != "" {
		dialer, err := proxy.SOCKS5("tcp", upstreamSocks5, nil, &net.Dialer{Timeout: DefaultTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	}

	return &HTTPProber{client: &http.Client{Transport: transport}}, nil
}

// Client exposes the underlying client so downloads can share the same route.
func (p *HTTPProber) Client() *http.Client {
	return p.client
}

func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("received non-successful status code: %d", resp.StatusCode)
	}
	return elapsed, nil
}
