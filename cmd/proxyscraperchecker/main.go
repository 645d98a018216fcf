// Command proxyscraperchecker scrapes, checks, and exports anonymous HTTP/
// SOCKS4/SOCKS5 proxies in one batch run. Grounded on
// jhaxce-originfind/cmd/origindive/main.go's pflag-driven entrypoint shape.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	proxyscraperchecker "github.com/grishkovelli/proxyscraperchecker"
	"github.com/grishkovelli/proxyscraperchecker/pkg/ui"
)

const configEnvVar = "PROXY_SCRAPER_CHECKER_CONFIG"

func main() {
	configPath, debug, noUI, uiPort := parseFlags()

	if err := run(configPath, debug, noUI, uiPort); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseFlags() (configPath string, debug, noUI bool, uiPort int) {
	defaultPath := os.Getenv(configEnvVar)
	if defaultPath == "" {
		defaultPath = "config.toml"
	}

	pflag.StringVar(&configPath, "config", defaultPath, "path to config.toml")
	pflag.BoolVar(&debug, "debug", false, "enable debug logging, overriding config.toml's debug flag if set")
	pflag.BoolVar(&noUI, "no-ui", false, "disable the live-status websocket dashboard")
	pflag.IntVar(&uiPort, "ui-port", 7878, "port for the live-status dashboard, when enabled")
	pflag.Parse()
	return
}

func run(configPath string, debugFlag, noUI bool, uiPort int) error {
	ctx, stop := proxyscraperchecker.RunContext(context.Background())
	defer stop()

	log := proxyscraperchecker.NewLogger(debugFlag)

	bootstrapClient, err := proxyscraperchecker.NewSharedHTTPClient()
	if err != nil {
		return fmt.Errorf("create bootstrap http client: %w", err)
	}

	cfg, err := proxyscraperchecker.NewConfig(ctx, configPath, bootstrapClient)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if debugFlag {
		cfg.Debug = true
	}
	if cfg.Debug {
		log = proxyscraperchecker.NewLogger(true)
	}

	httpClient, err := proxyscraperchecker.NewScrapingHTTPClient(cfg)
	if err != nil {
		return fmt.Errorf("create scraping http client: %w", err)
	}

	var broadcaster proxyscraperchecker.Broadcaster = proxyscraperchecker.NopBroadcaster{}
	if !noUI {
		tracker := proxyscraperchecker.NewStateTrackingBroadcaster(nil)
		server := ui.NewServer(tracker.State)
		tracker.Next = server
		broadcaster = tracker

		go func() {
			if err := server.ListenAndServe(uiPort); err != nil {
				log.Warn("dashboard server stopped: %v", err)
			}
		}()
	}

	orchestrator := proxyscraperchecker.NewOrchestrator(cfg, httpClient, log, broadcaster)
	return orchestrator.Run(ctx)
}
