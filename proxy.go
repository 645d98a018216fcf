package proxyscraperchecker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyType enumerates the proxy protocols this system understands.
type ProxyType int

const (
	Http ProxyType = iota
	Socks4
	Socks5
)

// String returns the lowercase scheme name used in config, URLs, and output.
func (t ProxyType) String() string {
	switch t {
	case Http:
		return "http"
	case Socks4:
		return "socks4"
	case Socks5:
		return "socks5"
	default:
		return "unknown"
	}
}

// ParseProxyType maps a scheme string to a ProxyType. "https" is treated as
// Http, matching the reference implementation's scheme folding.
func ParseProxyType(scheme string) (ProxyType, error) {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return Http, nil
	case "socks4":
		return Socks4, nil
	case "socks5":
		return Socks5, nil
	default:
		return 0, fmt.Errorf("unknown proxy scheme %q", scheme)
	}
}

// proxyID is the identity portion of a Proxy: the fields that participate in
// hashing and equality inside ProxyStorage. Measurement fields (Timeout,
// ExitIP) are deliberately excluded so that checking a proxy never changes
// its storage key.
type proxyID struct {
	Protocol ProxyType
	Host     string
	Port     int
	Username string
	Password string
}

// Proxy is a candidate or checked proxy. Identity fields are set once at
// creation by the scraper; Timeout and ExitIP are measurement fields written
// in place by the checker and excluded from identity.
type Proxy struct {
	id proxyID

	// Timeout is the elapsed duration of a successful probe. Nil means
	// "not checked yet".
	Timeout *time.Duration
	// ExitIP is the apparent public IP seen by the reference URL when
	// routed through this proxy. Nil means the body yielded no IPv4.
	ExitIP *net.IP
}

// NewProxy constructs a Proxy identity. port must already be validated to be
// in [1, 65535] by the caller.
func NewProxy(protocol ProxyType, host string, port int, username, password string) *Proxy {
	return &Proxy{id: proxyID{
		Protocol: protocol,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}}
}

func (p *Proxy) Protocol() ProxyType { return p.id.Protocol }
func (p *Proxy) Host() string        { return p.id.Host }
func (p *Proxy) Port() int           { return p.id.Port }
func (p *Proxy) Username() string    { return p.id.Username }
func (p *Proxy) Password() string    { return p.id.Password }

// Checked reports whether this proxy has a recorded probe timeout.
func (p *Proxy) Checked() bool { return p.Timeout != nil }

// Anonymous reports whether the exit IP differs from the proxy's own host,
// i.e. the proxy is not merely echoing the caller's address back.
func (p *Proxy) Anonymous() bool {
	return p.ExitIP != nil && p.ExitIP.String() != p.id.Host
}

// String renders "[scheme://][user:pass@]host:port". includeScheme controls
// the leading "scheme://"; credentials are only emitted when both username
// and password are set.
func (p *Proxy) String(includeScheme bool) string {
	var b strings.Builder
	if includeScheme {
		b.WriteString(p.id.Protocol.String())
		b.WriteString("://")
	}
	if p.id.Username != "" && p.id.Password != "" {
		b.WriteString(p.id.Username)
		b.WriteByte(':')
		b.WriteString(p.id.Password)
		b.WriteByte('@')
	}
	b.WriteString(p.id.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(p.id.Port))
	return b.String()
}

// checkWebsiteType distinguishes the two reference-response shapes the
// probe knows how to parse.
type checkWebsiteType int

const (
	checkWebsiteUnknown checkWebsiteType = iota
	checkWebsitePlainIP
	checkWebsiteHTTPBinLike
)

var originIPv4Regex = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

type httpBinResponse struct {
	Origin string `json:"origin"`
}

// ProbeOptions configures a single check() call. One ProbeOptions is shared
// read-only across every worker in the checker's pool.
type ProbeOptions struct {
	CheckURL        string
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	UserAgent       string
	Resolver        *net.Resolver
	WebsiteType     checkWebsiteType
}

// check performs one probe: dial the proxy, issue GET CheckURL, and record
// Timeout/ExitIP on success. It never retries and never shares a client,
// connection, or TLS session with any other probe — each call builds and
// discards its own one-shot http.Client.
func (p *Proxy) check(ctx context.Context, opts ProbeOptions) error {
	client, err := newProbeClient(p, opts)
	if err != nil {
		return fmt.Errorf("build probe client for %s: %w", p.String(true), err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.CheckURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.String(true), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe %s: unexpected status %d", p.String(true), resp.StatusCode)
	}

	elapsed := time.Since(start)
	p.Timeout = &elapsed

	if ip := extractExitIP(resp.Body, opts.WebsiteType); ip != nil {
		p.ExitIP = ip
	}
	return nil
}

// extractExitIP reads the (bounded) probe response body and tries to pull
// an IPv4 out of it. Decode failures are swallowed: a positive probe result
// stands even when the body can't be parsed, per spec.md 4.2 step 4.
func extractExitIP(body io.Reader, hint checkWebsiteType) *net.IP {
	r := bufio.NewReaderSize(body, 4096)
	raw, _ := r.Peek(4096)

	if hint != checkWebsitePlainIP {
		var hb httpBinResponse
		if json.Unmarshal(raw, &hb) == nil && hb.Origin != "" {
			if ip := parseFirstIPv4(hb.Origin); ip != nil {
				return ip
			}
		}
	}
	return parseFirstIPv4(string(raw))
}

// parseFirstIPv4 extracts the first IPv4 dotted-quad substring in s, or nil
// if none is present / parseable.
func parseFirstIPv4(s string) *net.IP {
	m := originIPv4Regex.FindString(s)
	if m == "" {
		return nil
	}
	ip := net.ParseIP(m)
	if ip == nil {
		return nil
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}
	return &ip4
}

// newProbeClient builds an http.Client bound to exactly this proxy: no
// connection pooling, no keep-alive, HTTP/1.1 only, and its own dial path
// (direct for HTTP proxies via Transport.Proxy, a SOCKS dialer for
// Socks4/Socks5). The client is meant to be used for exactly one request
// and discarded.
func newProbeClient(p *Proxy, opts ProbeOptions) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		Resolver:  opts.Resolver,
		KeepAlive: -1, // disable TCP keepalive; one-shot connection only
	}

	transport := &http.Transport{
		DisableKeepAlives:   true,
		MaxIdleConnsPerHost: -1,
		ForceAttemptHTTP2:   false,
	}

	switch p.id.Protocol {
	case Http:
		proxyURL := &url.URL{Scheme: "http", Host: net.JoinHostPort(p.id.Host, strconv.Itoa(p.id.Port))}
		if p.id.Username != "" && p.id.Password != "" {
			proxyURL.User = url.UserPassword(p.id.Username, p.id.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = dialer.DialContext

	case Socks5:
		var auth *proxy.Auth
		if p.id.Username != "" && p.id.Password != "" {
			auth = &proxy.Auth{User: p.id.Username, Password: p.id.Password}
		}
		addr := net.JoinHostPort(p.id.Host, strconv.Itoa(p.id.Port))
		d, err := proxy.SOCKS5("tcp", addr, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("build socks5 dialer: %w", err)
		}
		transport.DialContext = dialContextAdapter(d)

	case Socks4:
		addr := net.JoinHostPort(p.id.Host, strconv.Itoa(p.id.Port))
		transport.DialContext = socks4DialContext(dialer, addr)

	default:
		return nil, fmt.Errorf("unsupported proxy protocol %v", p.id.Protocol)
	}

	return &http.Client{Transport: transport}, nil
}

// dialContextAdapter wraps a golang.org/x/net/proxy.Dialer (which only
// exposes a context-less Dial) in a DialContext-compatible func so callers
// still benefit from the surrounding context's deadline via the dialer's
// own timeout.
func dialContextAdapter(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			c, err := d.Dial(network, addr)
			ch <- result{c, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
