package proxyscraperchecker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Source is a resolved scraping source: a URL or local file path plus
// optional basic-auth and headers, associated with the default protocol
// applied to any match in its text that omits an explicit scheme. Grounded
// on spec.md 3's Source definition.
type Source struct {
	Location        string
	DefaultProtocol ProxyType
	Auth            *BasicAuth
	Headers         map[string]string
}

// CheckWebsiteType distinguishes the reference-URL response shapes the
// checker knows how to parse, guessed once at startup. Grounded on
// original_source/src/config.rs's CheckWebsiteType.
type CheckWebsiteType int

const (
	CheckWebsiteUnknown CheckWebsiteType = iota
	CheckWebsitePlainIP
	CheckWebsiteHTTPBinIP
)

// SupportsGeolocation reports whether this check_website type yields an
// exit IP at all, and therefore whether ASN/geo enrichment is possible.
func (t CheckWebsiteType) SupportsGeolocation() bool {
	return t != CheckWebsiteUnknown
}

func (t CheckWebsiteType) probeWebsiteType() checkWebsiteType {
	switch t {
	case CheckWebsitePlainIP:
		return checkWebsitePlainIP
	case CheckWebsiteHTTPBinIP:
		return checkWebsiteHTTPBinLike
	default:
		return checkWebsiteUnknown
	}
}

// Config is the validated, immutable configuration shared read-only across
// every stage. Grounded on original_source/src/config.rs's Config,
// expanded to spec.md 3/6's richer schema.
type Config struct {
	Debug bool

	ScrapingTimeout        time.Duration
	ScrapingConnectTimeout time.Duration
	ScrapingProxy          string
	ScrapingUserAgent      string
	MaxProxiesPerSource    int
	Sources                map[ProxyType][]Source

	CheckURL              string
	CheckWebsiteType      CheckWebsiteType
	MaxConcurrentChecks   int
	CheckTimeout          time.Duration
	CheckConnectTimeout   time.Duration
	CheckUserAgent        string

	OutputPath         string
	SortBySpeed        bool
	OutputTxt          bool
	OutputJSON         bool
	IncludeASN         bool
	IncludeGeolocation bool
}

// EnabledProtocols returns the ProxyTypes with at least one enabled
// scraping section, in stable order.
func (c *Config) EnabledProtocols() []ProxyType {
	var out []ProxyType
	for _, pt := range []ProxyType{Http, Socks4, Socks5} {
		if _, ok := c.Sources[pt]; ok {
			out = append(out, pt)
		}
	}
	return out
}

// NewConfig reads, validates, and converts path into a Config, resolving
// the output path (Docker-aware) and guessing the check-website response
// shape against http using a throwaway direct client.
func NewConfig(ctx context.Context, path string, http *sharedHTTPClient) (*Config, error) {
	raw, err := ReadRawConfig(path)
	if err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	outputPath, err := resolveOutputPath(raw.Output.Path)
	if err != nil {
		return nil, err
	}

	websiteType := CheckWebsiteUnknown
	if raw.Checking.CheckURL != "" {
		websiteType = guessCheckWebsiteType(ctx, http, raw.Checking.CheckURL)
	}

	cfg := &Config{
		Debug: raw.Debug,

		ScrapingTimeout:        durationFromSeconds(raw.Scraping.Timeout),
		ScrapingConnectTimeout: durationFromSeconds(raw.Scraping.ConnectTimeout),
		ScrapingProxy:          raw.Scraping.Proxy,
		ScrapingUserAgent:      raw.Scraping.UserAgent,
		MaxProxiesPerSource:    raw.Scraping.MaxProxiesPerSource,
		Sources:                buildSources(raw),

		CheckURL:            raw.Checking.CheckURL,
		CheckWebsiteType:    websiteType,
		MaxConcurrentChecks: raw.Checking.MaxConcurrentChecks,
		CheckTimeout:        durationFromSeconds(raw.Checking.Timeout),
		CheckConnectTimeout:  durationFromSeconds(raw.Checking.ConnectTimeout),
		CheckUserAgent:      raw.Checking.UserAgent,

		OutputPath:         outputPath,
		SortBySpeed:        raw.Output.SortBySpeed,
		OutputTxt:          raw.Output.Txt.Enabled,
		OutputJSON:         raw.Output.JSON.Enabled,
		IncludeASN:         raw.Output.JSON.IncludeASN,
		IncludeGeolocation: raw.Output.JSON.IncludeGeolocation && websiteType.SupportsGeolocation(),
	}
	return cfg, nil
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// buildSources converts the per-protocol RawProxySection tables into
// Config.Sources, dropping any protocol whose section is disabled.
func buildSources(raw *RawConfig) map[ProxyType][]Source {
	out := make(map[ProxyType][]Source)
	sections := []struct {
		protocol ProxyType
		section  RawProxySection
	}{
		{Http, raw.Scraping.HTTP},
		{Socks4, raw.Scraping.Socks4},
		{Socks5, raw.Scraping.Socks5},
	}

	for _, s := range sections {
		if !s.section.Enabled {
			continue
		}
		sources := make([]Source, 0, len(s.section.URLs))
		for _, raw := range s.section.URLs {
			src := Source{Location: raw.URL, DefaultProtocol: s.protocol, Headers: raw.Headers}
			if raw.BasicAuth != nil {
				src.Auth = &BasicAuth{Username: raw.BasicAuth.Username, Password: raw.BasicAuth.Password}
			}
			sources = append(sources, src)
		}
		out[s.protocol] = sources
	}
	return out
}

// resolveOutputPath returns configuredPath unless running inside Docker, in
// which case it's overridden to appDirectoryName under the per-user cache
// directory (os.UserCacheDir), the same directory CacheDir uses; no separate
// local-data directory is used. The directory is created either way.
func resolveOutputPath(configuredPath string) (string, error) {
	path := configuredPath
	if IsDocker() {
		base, err := os.UserCacheDir() // stdlib has no separate "local data dir"; cache dir is the closest portable analogue
		if err != nil {
			return "", fmt.Errorf("get local data directory: %w", err)
		}
		path = filepath.Join(base, appDirectoryName)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", path, err)
	}
	return path, nil
}

type httpBinProbeResponse struct {
	Origin string `json:"origin"`
}

// guessCheckWebsiteType fetches checkURL directly (no proxy) once at
// startup and classifies its response shape, falling back to
// CheckWebsiteUnknown on any failure. Grounded on
// original_source/src/config.rs::CheckWebsiteType::guess.
func guessCheckWebsiteType(ctx context.Context, http *sharedHTTPClient, checkURL string) CheckWebsiteType {
	body, err := http.FetchText(ctx, checkURL, FetchOptions{})
	if err != nil {
		return CheckWebsiteUnknown
	}

	var hb httpBinProbeResponse
	if json.Unmarshal([]byte(body), &hb) == nil && hb.Origin != "" {
		if parseIPv4(hb.Origin) != "" {
			return CheckWebsiteHTTPBinIP
		}
		return CheckWebsiteUnknown
	}
	if parseIPv4(body) != "" {
		return CheckWebsitePlainIP
	}
	return CheckWebsiteUnknown
}
