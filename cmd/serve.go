package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/compresr/bedrock-provider/internal/gateway"
	"github.com/compresr/bedrock-provider/internal/monitoring"
)

// runServe starts the HTTP API and blocks until SIGINT or SIGTERM.
func runServe(args []string) error {
	// Load .env files from standard locations
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	if err := fs.Parse(args); err != nil {
		return exitError{code: 2}
	}

	if !*noBanner {
		printBanner(os.Stdout)
	}
	setupLogging(*debug, os.Stdout)

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// The config decides the final log format once it is known.
	lc := loggerConfig(cfg, *debug)
	monitoring.Global(lc)
	logger := monitoring.New(lc)

	log.Info().
		Str("version", Version).
		Str("config", source).
		Msg("Bedrock provider starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	resolver := rt.processor.Resolver()
	log.Info().
		Int("port", cfg.Server.Port).
		Str("transport", cfg.Transport.Mode).
		Str("rate_limit_backend", cfg.RateLimit.Backend).
		Str("drafts_backend", cfg.Drafts.Backend).
		Str("usage_driver", cfg.Usage.Driver).
		Bool("configured", resolver.Configured("")).
		Int("instances", len(cfg.Instances)).
		Msg("configuration loaded")
	if !resolver.Configured("") {
		log.Warn().Msg("site credentials are incomplete; actions without instance credentials will fail")
	}

	gw, err := gateway.New(cfg, gateway.Options{
		Processor:     rt.processor,
		Usage:         rt.usage,
		Metrics:       rt.metrics,
		Alerts:        rt.alerts,
		RequestLogger: rt.requestLogger,
	})
	if err != nil {
		return err
	}

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("gateway error: %w", err)
	}

	log.Info().Msg("Bedrock provider stopped")
	return nil
}
