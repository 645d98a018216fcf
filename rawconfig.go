package proxyscraperchecker

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// RawSource is the TOML wire shape of one scraping source: either a bare
// string (URL or file path) or a table with optional basic-auth/headers.
// Grounded on spec.md 6's `Source` definition. TOML's BurntSushi decoder
// can't natively discriminate "string or table" for one field, so RawSource
// implements toml.Unmarshaler-compatible decoding via UnmarshalTOML.
type RawSource struct {
	URL       string
	BasicAuth *RawBasicAuth
	Headers   map[string]string
}

// RawBasicAuth is the TOML `basic_auth` subtable.
type RawBasicAuth struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// UnmarshalTOML implements toml.Unmarshaler, accepting either a bare string
// or a table {url, basic_auth?, headers?}.
func (s *RawSource) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		s.URL = v
		return nil
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			s.URL = u
		} else {
			return fmt.Errorf("source table missing required 'url' field")
		}
		if ba, ok := v["basic_auth"].(map[string]any); ok {
			s.BasicAuth = &RawBasicAuth{}
			if u, ok := ba["username"].(string); ok {
				s.BasicAuth.Username = u
			}
			if p, ok := ba["password"].(string); ok {
				s.BasicAuth.Password = p
			}
		}
		if h, ok := v["headers"].(map[string]any); ok {
			s.Headers = make(map[string]string, len(h))
			for k, raw := range h {
				if sv, ok := raw.(string); ok {
					s.Headers[k] = sv
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("source must be a string or a table, got %T", data)
	}
}

// RawProxySection is the TOML shape of scraping.{http,socks4,socks5}.
type RawProxySection struct {
	Enabled bool        `toml:"enabled"`
	URLs    []RawSource `toml:"urls"`
}

// RawScraping is the TOML `[scraping]` table.
type RawScraping struct {
	MaxProxiesPerSource int             `toml:"max_proxies_per_source"`
	Timeout             float64         `toml:"timeout"`
	ConnectTimeout      float64         `toml:"connect_timeout"`
	Proxy               string          `toml:"proxy"`
	UserAgent           string          `toml:"user_agent"`
	HTTP                RawProxySection `toml:"http"`
	Socks4              RawProxySection `toml:"socks4"`
	Socks5              RawProxySection `toml:"socks5"`
}

// RawChecking is the TOML `[checking]` table.
type RawChecking struct {
	CheckURL             string  `toml:"check_url"`
	MaxConcurrentChecks  int     `toml:"max_concurrent_checks"`
	Timeout              float64 `toml:"timeout"`
	ConnectTimeout       float64 `toml:"connect_timeout"`
	UserAgent            string  `toml:"user_agent"`
}

// RawOutputJSON is the TOML `[output.json]` table.
type RawOutputJSON struct {
	Enabled           bool `toml:"enabled"`
	IncludeASN        bool `toml:"include_asn"`
	IncludeGeolocation bool `toml:"include_geolocation"`
}

// RawOutputTxt is the TOML `[output.txt]` table.
type RawOutputTxt struct {
	Enabled bool `toml:"enabled"`
}

// RawOutput is the TOML `[output]` table.
type RawOutput struct {
	Path         string        `toml:"path"`
	SortBySpeed  bool          `toml:"sort_by_speed"`
	Txt          RawOutputTxt  `toml:"txt"`
	JSON         RawOutputJSON `toml:"json"`
}

// RawConfig is the TOML wire shape of config.toml, decoded with no
// validation applied yet; Validate and NewConfig perform validation and
// conversion. Grounded on original_source/src/raw_config.rs's RawConfig,
// expanded to spec.md 6's richer scraping/checking/output schema.
type RawConfig struct {
	Debug    bool        `toml:"debug"`
	Scraping RawScraping `toml:"scraping"`
	Checking RawChecking `toml:"checking"`
	Output   RawOutput   `toml:"output"`
}

// ReadRawConfig reads and parses path as TOML. It does not validate field
// values; call Validate (or NewConfig, which calls it) afterward.
func ReadRawConfig(path string) (*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw RawConfig
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse config %s as TOML: %w", path, err)
	}
	return &raw, nil
}

// Validate checks the field-level constraints spec.md 6 names: positive
// timeouts, a well-formed check_url scheme, and at least one output format
// enabled.
func (r *RawConfig) Validate() error {
	if r.Scraping.Timeout <= 0 {
		return fmt.Errorf("scraping.timeout must be positive, got %v", r.Scraping.Timeout)
	}
	if r.Scraping.ConnectTimeout <= 0 {
		return fmt.Errorf("scraping.connect_timeout must be positive, got %v", r.Scraping.ConnectTimeout)
	}
	if r.Scraping.Proxy != "" {
		if err := validateProxyURL(r.Scraping.Proxy); err != nil {
			return fmt.Errorf("scraping.proxy: %w", err)
		}
	}
	if r.Checking.CheckURL != "" && !isHTTPURL(r.Checking.CheckURL) {
		return fmt.Errorf("checking.check_url %q is not a valid http(s) url", r.Checking.CheckURL)
	}
	if r.Checking.MaxConcurrentChecks < 1 {
		return fmt.Errorf("checking.max_concurrent_checks must be >= 1, got %d", r.Checking.MaxConcurrentChecks)
	}
	if r.Checking.Timeout <= 0 {
		return fmt.Errorf("checking.timeout must be positive, got %v", r.Checking.Timeout)
	}
	if r.Checking.ConnectTimeout <= 0 {
		return fmt.Errorf("checking.connect_timeout must be positive, got %v", r.Checking.ConnectTimeout)
	}
	if !r.Output.Txt.Enabled && !r.Output.JSON.Enabled {
		return fmt.Errorf("at least one of output.txt.enabled or output.json.enabled must be true")
	}
	return nil
}

// isHTTPURL reports whether s looks like an http(s) URL, grounded on
// original_source/src/utils.rs's is_http_url check (referenced from
// raw_config.rs::validate_http_url).
func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func validateProxyURL(s string) error {
	for _, scheme := range []string{"http://", "https://", "socks4://", "socks5://"} {
		if strings.HasPrefix(s, scheme) {
			return nil
		}
	}
	return fmt.Errorf("%q has an unsupported scheme (want http, https, socks4, or socks5)", s)
}
