package proxyscraperchecker

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Orchestrator sequences a full run: scraping and IP-DB downloads happen in
// parallel, followed by checking, followed by export. Grounded on
// original_source/src/main.rs::run, generalized from its single ordered
// async block into an explicit pipeline struct.
type Orchestrator struct {
	cfg    *Config
	http   *sharedHTTPClient
	log    *Logger
	events Broadcaster
}

// NewOrchestrator builds an Orchestrator around an already-validated cfg.
func NewOrchestrator(cfg *Config, http *sharedHTTPClient, log *Logger, events Broadcaster) *Orchestrator {
	if events == nil {
		events = NopBroadcaster{}
	}
	return &Orchestrator{cfg: cfg, http: http, log: log, events: events}
}

// Run executes one full scrape -> check -> export pass. ctx's cancellation
// (typically wired to SIGINT/SIGTERM by the caller via signal.NotifyContext)
// is honored cooperatively at every stage boundary and inside the scraper
// and checker's own per-item loops.
func (o *Orchestrator) Run(ctx context.Context) error {
	var fdLimit uint64
	if limit, err := raiseNoFileLimit(); err != nil {
		o.log.Debug("could not raise RLIMIT_NOFILE: %v", err)
	} else if limit > 0 {
		o.log.Debug("raised RLIMIT_NOFILE to %d", limit)
		fdLimit = limit
	}

	var dbs *IPDatabases
	g, gctx := errgroup.WithContext(ctx)

	var storage *ProxyStorage
	g.Go(func() error {
		var err error
		storage, err = NewScraper(o.cfg, o.http, o.log, o.events).ScrapeAll(gctx)
		if err != nil {
			return fmt.Errorf("scrape: %w", err)
		}
		return nil
	})

	if o.cfg.IncludeASN || o.cfg.IncludeGeolocation {
		g.Go(func() error {
			downloader := NewIPDatabaseDownloader(o.http, o.log, o.events)
			if o.cfg.IncludeASN {
				if err := downloader.Download(gctx, IPDatabaseASN); err != nil {
					return fmt.Errorf("download ASN database: %w", err)
				}
			}
			if o.cfg.IncludeGeolocation {
				if err := downloader.Download(gctx, IPDatabaseCity); err != nil {
					return fmt.Errorf("download geolocation database: %w", err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if o.cfg.CheckWebsiteType != CheckWebsiteUnknown {
		var err error
		storage, err = NewChecker(o.cfg, o.log, o.events, fdLimit).CheckAll(ctx, storage)
		if err != nil {
			return fmt.Errorf("check proxies: %w", err)
		}
	}

	if o.cfg.IncludeASN || o.cfg.IncludeGeolocation {
		var err error
		dbs, err = OpenIPDatabases(o.cfg.IncludeASN, o.cfg.IncludeGeolocation)
		if err != nil {
			return fmt.Errorf("open ip databases: %w", err)
		}
		defer dbs.Close()
	}

	if err := NewExporter(o.cfg, o.log, dbs).Export(storage); err != nil {
		return fmt.Errorf("export proxies: %w", err)
	}

	o.log.Info("Thank you for using proxy-scraper-checker!")
	o.events.Publish(AppEvent{Kind: EventDone})
	return nil
}

// RunContext returns a context cancelled on SIGINT/SIGTERM, along with the
// stop function the caller must defer, per spec.md 4.9's "cooperative
// cancellation via context.Context / signal handling" requirement.
func RunContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
