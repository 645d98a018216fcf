package proxyscraperchecker

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	maxFetchRetries    = 2 // 1 original attempt + 2 retries = 3 total, per spec.md 4.3
	initialRetryDelay  = 500 * time.Millisecond
	maxRetryDelay      = 8 * time.Second
	maxServerDelay     = 60 * time.Second
)

var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// BasicAuth is an optional basic-auth credential pair attached to a Source.
type BasicAuth struct {
	Username string
	Password string
}

// FetchOptions configures one retrying FetchText call (source scraping and
// the startup check-website probe). The IP-DB downloader does not use it:
// its fetchWithRetry takes a plain header map and shares only the retry
// policy.
type FetchOptions struct {
	Auth      *BasicAuth
	Headers   map[string]string
	UserAgent string
}

// sharedHTTPClient is the one client used for all scraping and IP-DB
// fetches; reused across requests (unlike the checker's one-shot probe
// clients) since connection reuse here is a correctness non-issue and a
// performance win, per spec.md 4.3's fetcher contract.
type sharedHTTPClient struct {
	client   *http.Client
	resolver *net.Resolver
}

// newSharedHTTPClient builds the scraping-side client, optionally routed
// through an outbound proxy (scraping.proxy in config), with the shared DNS
// resolver spec.md 4.2/9 calls for.
func newSharedHTTPClient(timeout, connectTimeout time.Duration, outboundProxy string) (*sharedHTTPClient, error) {
	resolver := net.DefaultResolver

	dialer := &net.Dialer{Timeout: connectTimeout, Resolver: resolver}
	transport := &http.Transport{DialContext: dialer.DialContext}

	if outboundProxy != "" {
		u, err := url.Parse(outboundProxy)
		if err != nil {
			return nil, fmt.Errorf("parse scraping.proxy %q: %w", outboundProxy, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &sharedHTTPClient{
		client:   &http.Client{Transport: transport, Timeout: timeout},
		resolver: resolver,
	}, nil
}

// bootstrapTimeout/bootstrapConnectTimeout match
// original_source/src/main.rs::create_reqwest_client's fixed values, used
// for the one client built before a Config exists (to guess the
// check-website response shape; config.toml itself is read from disk).
const (
	bootstrapTimeout        = 60 * time.Second
	bootstrapConnectTimeout = 5 * time.Second
)

// NewSharedHTTPClient builds the bootstrap client used before a Config
// exists, for probing checking.check_url's response shape.
func NewSharedHTTPClient() (*sharedHTTPClient, error) {
	return newSharedHTTPClient(bootstrapTimeout, bootstrapConnectTimeout, "")
}

// NewScrapingHTTPClient builds the client scraping and IP-DB downloads
// share, scoped to cfg's scraping timeouts and outbound proxy.
func NewScrapingHTTPClient(cfg *Config) (*sharedHTTPClient, error) {
	return newSharedHTTPClient(cfg.ScrapingTimeout, cfg.ScrapingConnectTimeout, cfg.ScrapingProxy)
}

// FetchText performs a GET against target with retry/backoff per spec.md
// 4.3 and returns the decoded response body as text.
func (c *sharedHTTPClient) FetchText(ctx context.Context, target string, opts FetchOptions) (string, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		body, retriable, headers, err := c.attempt(ctx, target, opts)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retriable || attempt >= maxFetchRetries {
			break
		}

		delay, ok := c.retryDelay(headers, attempt)
		if !ok {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", lastErr
}

// attempt performs one HTTP round trip. The bool return reports whether a
// failing err is retriable (a transport/connect error, or one of
// retryableStatuses); non-retriable errors (a parse failure, a 4xx/5xx not
// in that set) must not trigger backoff.
func (c *sharedHTTPClient) attempt(ctx context.Context, target string, opts FetchOptions) (string, bool, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false, nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Auth != nil {
		req.SetBasicAuth(opts.Auth.Username, opts.Auth.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if retryableStatuses[resp.StatusCode] {
			return "", true, resp.Header, fmt.Errorf("fetch %s: retriable status %d", target, resp.StatusCode)
		}
		return "", false, nil, fmt.Errorf("fetch %s: unretriable status %d", target, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, nil, fmt.Errorf("read body from %s: %w", target, err)
	}
	return string(b), false, nil, nil
}

// retryDelay resolves how long to sleep before the next attempt, or false
// if no retry should happen (server delay hint exceeded 60s, per spec.md
// 4.3). headers may be nil (a transport/connect error carries none).
func (c *sharedHTTPClient) retryDelay(headers http.Header, attempt int) (time.Duration, bool) {
	if headers != nil {
		if after, ok := parseRetryAfter(headers); ok {
			if after > maxServerDelay {
				return 0, false
			}
			return after, true
		}
	}

	base := initialRetryDelay * time.Duration(1<<uint(attempt))
	if base > maxRetryDelay {
		base = maxRetryDelay
	}
	jitter := 1.0 - 0.25*rand.Float64()
	return time.Duration(float64(base) * jitter), true
}

// parseRetryAfter reads Retry-After-Ms first, then Retry-After (seconds or
// HTTP-date), per spec.md 4.3.
func parseRetryAfter(headers http.Header) (time.Duration, bool) {
	if ms := headers.Get("Retry-After-Ms"); ms != "" {
		if v, err := strconv.ParseInt(ms, 10, 64); err == nil {
			return time.Duration(v) * time.Millisecond, true
		}
	}

	ra := headers.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(ra, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}
