package proxyscraperchecker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Checker probes every proxy in a ProxyStorage with a bounded worker pool
// and returns a fresh storage containing only the ones that passed.
// Grounded on original_source/src/checker.rs's check_all (a fixed worker
// pool draining a shared queue) and the teacher's worker.go/balancer.go
// fetchProxies shape for the pool itself.
type Checker struct {
	cfg     *Config
	log     *Logger
	events  Broadcaster
	fdLimit uint64
}

// NewChecker builds a Checker. fdLimit is the achieved RLIMIT_NOFILE soft
// limit (as returned by raiseNoFileLimit); 0 means "no fd clamp" (a raise
// attempt failed or this platform doesn't track one), per spec.md 4.6/9's
// "effective worker count = min(configured, fd_limit)" requirement.
func NewChecker(cfg *Config, log *Logger, events Broadcaster, fdLimit uint64) *Checker {
	if events == nil {
		events = NopBroadcaster{}
	}
	return &Checker{cfg: cfg, log: log, events: events, fdLimit: fdLimit}
}

// CheckAll drains in with workersCount = min(cfg.MaxConcurrentChecks,
// len(in), fdLimit) concurrent workers, each probing proxies from a shared
// queue until it's empty or ctx is cancelled, and returns the proxies that
// passed. A single proxy's probe failure is not fatal; only a worker-level
// error (none currently possible, kept for forward compatibility with
// errgroup's cancellation propagation) would abort the whole run.
func (c *Checker) CheckAll(ctx context.Context, in *ProxyStorage) (*ProxyStorage, error) {
	out := NewProxyStorage()

	all := in.All()
	workersCount := c.cfg.MaxConcurrentChecks
	if len(all) < workersCount {
		workersCount = len(all)
	}
	if c.fdLimit > 0 && uint64(workersCount) > c.fdLimit {
		workersCount = int(c.fdLimit)
	}
	if workersCount == 0 {
		return out, nil
	}

	queue := make(chan *Proxy, len(all))
	for _, p := range all {
		queue <- p
	}
	close(queue)

	opts := ProbeOptions{
		CheckURL:        c.cfg.CheckURL,
		Timeout:         c.cfg.CheckTimeout,
		ConnectTimeout:  c.cfg.CheckConnectTimeout,
		UserAgent:       c.cfg.CheckUserAgent,
		WebsiteType:     c.cfg.CheckWebsiteType.probeWebsiteType(),
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workersCount; i++ {
		g.Go(func() error {
			for p := range queue {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				err := p.check(ctx, opts)
				c.events.Publish(AppEvent{Kind: EventProxyChecked, Protocol: p.Protocol()})
				if err != nil {
					if c.cfg.Debug {
						c.log.Debug("%s | %v", p.String(true), err)
					}
					continue
				}

				c.events.Publish(AppEvent{Kind: EventProxyWorking, Protocol: p.Protocol()})
				out.Insert(p)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
