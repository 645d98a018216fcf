package proxyscraperchecker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Scraper turns a configured protocol -> []Source map into a dedup
// ProxyStorage. Grounded on original_source/src/scraper.rs's scrape_one /
// scrape_all, and the teacher's worker.go::fetchProxies /
// balancer.go::fetchProxies (fan-out per source into a shared, mutex-guarded
// set — here replaced by ProxyStorage's own internal mutex).
type Scraper struct {
	cfg    *Config
	http   *sharedHTTPClient
	log    *Logger
	events Broadcaster
}

// NewScraper builds a Scraper sharing http across every source fetch.
func NewScraper(cfg *Config, http *sharedHTTPClient, log *Logger, events Broadcaster) *Scraper {
	if events == nil {
		events = NopBroadcaster{}
	}
	return &Scraper{cfg: cfg, http: http, log: log, events: events}
}

// ScrapeAll fans out one task per (protocol, source) pair and returns the
// merged dedup set. Each task is raced against ctx; a cancelled task
// returns without error, contributing whatever it had already inserted
// (spec.md 4.5's cancellation contract).
func (s *Scraper) ScrapeAll(ctx context.Context) (*ProxyStorage, error) {
	storage := NewProxyStorage(s.cfg.EnabledProtocols()...)

	g, ctx := errgroup.WithContext(ctx)
	for protocol, sources := range s.cfg.Sources {
		s.events.Publish(AppEvent{Kind: EventSourcesTotal, Protocol: protocol, Count: len(sources)})

		for _, source := range sources {
			protocol, source := protocol, source
			g.Go(func() error {
				return s.scrapeOne(ctx, protocol, source, storage)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return storage, nil
}

// scrapeOne fetches one source's text, extracts proxy candidates, and
// inserts accepted ones into storage. A fetch failure or cancellation is
// logged/ignored rather than propagated — spec.md 4.5: "a failed source is
// not a fatal error".
func (s *Scraper) scrapeOne(ctx context.Context, protocol ProxyType, source Source, storage *ProxyStorage) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	text, err := s.fetchSourceText(ctx, source)
	s.events.Publish(AppEvent{Kind: EventSourceScraped, Protocol: protocol})
	if err != nil {
		s.log.Warn("%s | %v", source.Location, err)
		return nil
	}

	text = expandCIDRRanges(text)
	matches := scanText(text)

	if len(matches) == 0 {
		s.log.Warn("%s | no proxies found", source.Location)
		return nil
	}

	if s.cfg.MaxProxiesPerSource != 0 && len(matches) > s.cfg.MaxProxiesPerSource {
		s.log.Warn("%s | too many proxies (%d), skipped", source.Location, len(matches))
		return nil
	}

	seenProtocols := make(map[ProxyType]bool)
	for _, m := range matches {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		resolved := protocol
		if m.Protocol != "" {
			pt, err := ParseProxyType(m.Protocol)
			if err != nil {
				continue
			}
			resolved = pt
		}

		p := NewProxy(resolved, m.Host, m.Port, m.Username, m.Password)
		if storage.Insert(p) {
			seenProtocols[resolved] = true
		}
	}

	for protocol := range seenProtocols {
		s.events.Publish(AppEvent{Kind: EventTotalProxies, Protocol: protocol, Count: len(storage.GroupedByProtocol()[protocol])})
	}
	return nil
}

// fetchSourceText resolves source's text: http(s) URLs go through the
// retrying fetcher, everything else (bare paths or file:// URLs) is read
// from the local filesystem. Grounded on scraper.rs::scrape_one's
// URL-vs-file branch.
func (s *Scraper) fetchSourceText(ctx context.Context, source Source) (string, error) {
	loc := source.Location

	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return s.http.FetchText(ctx, loc, FetchOptions{
			Auth:      source.Auth,
			Headers:   source.Headers,
			UserAgent: s.cfg.ScrapingUserAgent,
		})
	}

	path := strings.TrimPrefix(loc, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read local source %s: %w", path, err)
	}
	return string(data), nil
}
