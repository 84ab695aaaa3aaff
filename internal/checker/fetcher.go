package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
)

// Default request headers. The user agent is set per request.
const (
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "en-US,en;q=0.5"
	DefaultTimeout        = 30 * time.Second
	// DefaultMaxBodySize caps how much of a page is read. Longer bodies are truncated.
	DefaultMaxBodySize = 10 << 20
)

// FetchResult is either a page or a classified error.
type FetchResult struct {
	Page       string
	StatusCode int
	Err        ErrorKind
}

// OK reports whether the fetch produced a page.
func (r FetchResult) OK() bool {
	return r.Err == ErrNone
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Timeout time.Duration
	// RequestDelay paces requests per host. Zero disables pacing.
	RequestDelay time.Duration
	// ServerBusyBackoff is slept after a 429 or 503 answer. Zero disables it.
	ServerBusyBackoff time.Duration
	// HostDelays override RequestDelay for single hosts, e.g. www.ebay.com.
	HostDelays map[string]time.Duration
	// Headers override or extend the default request headers. The rotated
	// user agent always wins over a configured User-Agent.
	Headers map[string]string
	// MaxBodySize defaults to DefaultMaxBodySize.
	MaxBodySize int64
}

// Fetcher performs one GET per call through an optional proxy.
// It is safe for concurrent use.
type Fetcher struct {
	opts    FetcherOptions
	limiter *RateLimiter

	mu      sync.RWMutex
	clients map[AuthenticatedProxy]*http.Client
}

// NewFetcher creates a fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	limiter := NewRateLimiter(opts.RequestDelay)
	for host, delay := range opts.HostDelays {
		limiter.SetHostDelay(host, delay)
	}
	return &Fetcher{
		opts:    opts,
		limiter: limiter,
		clients: make(map[AuthenticatedProxy]*http.Client),
	}
}

// Fetch downloads link. Failures never surface as Go errors: every failure
// mode is mapped to an ErrorKind on the result. No retries are attempted.
func (f *Fetcher) Fetch(ctx context.Context, link string, proxy *AuthenticatedProxy, userAgent string) FetchResult {
	client, err := f.client(proxy)
	if err != nil {
		slog.Warn("Unusable proxy", "proxy", proxy, "error", err)
		return FetchResult{Err: ErrProxy}
	}

	if err := f.limiter.Wait(ctx, link); err != nil {
		return FetchResult{Err: classifyError(err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		slog.Debug("Cannot build request", "url", link, "error", err)
		return FetchResult{Err: ErrRequest}
	}
	f.setHeaders(req, userAgent)

	var gotConn atomic.Bool
	if proxy != nil {
		trace := &httptrace.ClientTrace{
			GotConn: func(httptrace.GotConnInfo) { gotConn.Store(true) },
		}
		req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := classifyError(err)
		if proxy != nil && !gotConn.Load() && kind != ErrTimeout {
			// No connection was handed out: dialing the proxy or its CONNECT failed.
			kind = ErrProxy
		}
		slog.Debug("Request failed", "url", link, "kind", kind, "error", err)
		return FetchResult{Err: kind}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			f.backoff(ctx)
		}
		return FetchResult{StatusCode: resp.StatusCode, Err: statusKind(resp.StatusCode)}
	}

	page, err := readBody(resp, f.opts.MaxBodySize)
	if err != nil {
		kind := classifyError(err)
		if kind == ErrServerClosed {
			kind = ErrSiteClosed
		}
		slog.Debug("Reading body failed", "url", link, "kind", kind, "error", err)
		return FetchResult{StatusCode: resp.StatusCode, Err: kind}
	}

	return FetchResult{Page: page, StatusCode: resp.StatusCode}
}

// Close releases idle connections of every cached client.
func (f *Fetcher) Close() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, c := range f.clients {
		c.CloseIdleConnections()
	}
}

func (f *Fetcher) setHeaders(req *http.Request, userAgent string) {
	req.Header.Set("Accept", DefaultAccept)
	req.Header.Set("Accept-Language", DefaultAcceptLanguage)
	req.Header.Set("Connection", "keep-alive")
	for name, value := range f.opts.Headers {
		req.Header.Set(name, value)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
}

func (f *Fetcher) backoff(ctx context.Context) {
	if f.opts.ServerBusyBackoff <= 0 {
		return
	}
	t := time.NewTimer(f.opts.ServerBusyBackoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// client returns the http.Client bound to a proxy and its credentials,
// creating it on first use. A nil proxy yields a direct client.
func (f *Fetcher) client(proxy *AuthenticatedProxy) (*http.Client, error) {
	var key AuthenticatedProxy
	if proxy != nil {
		key = *proxy
	}

	f.mu.RLock()
	c, ok := f.clients[key]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[key]; ok {
		return c, nil
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != nil {
		proxyURL, err := proxy.ProxyURL()
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c = &http.Client{
		Transport: transport,
		Timeout:   f.opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
	f.clients[key] = c
	return c, nil
}

// readBody reads at most limit bytes and decodes them to UTF-8 using the
// declared or sniffed charset.
func readBody(resp *http.Response, limit int64) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	r, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}
