package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/compresr/bedrock-provider/external"
	"github.com/compresr/bedrock-provider/internal/actions"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/drafts"
	"github.com/compresr/bedrock-provider/internal/i18n"
	"github.com/compresr/bedrock-provider/internal/imaging"
	"github.com/compresr/bedrock-provider/internal/monitoring"
	"github.com/compresr/bedrock-provider/internal/ratelimit"
	"github.com/compresr/bedrock-provider/internal/store"
	"github.com/compresr/bedrock-provider/internal/tokens"
)

// runtime holds every component built from one configuration.
type runtime struct {
	cfg           *config.Config
	processor     *actions.Processor
	usage         store.Store
	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	requestLogger *monitoring.RequestLogger
	tracker       *monitoring.Tracker

	closers []io.Closer
}

// newRuntime wires the processor and its backends from cfg. Invoker may be
// nil, in which case the configured transport is used.
func newRuntime(ctx context.Context, cfg *config.Config, logger *monitoring.Logger, invoker external.Invoker) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	var err error

	if invoker == nil {
		invoker, err = external.New(cfg.Transport.Mode, cfg.Transport.Timeout, cfg.Transport.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit backend: %w", err)
	}
	if c, ok := limiter.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	draftStore, err := drafts.New(ctx, cfg.Drafts)
	if err != nil {
		return nil, fmt.Errorf("drafts backend: %w", err)
	}

	rt.usage, err = store.New(cfg.Usage)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	rt.closers = append(rt.closers, rt.usage)

	catalog, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("message catalog: %w", err)
	}

	rt.tracker, err = monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.closers = append(rt.closers, rt.tracker)

	rt.metrics = monitoring.NewMetricsCollector()
	rt.alerts = monitoring.NewAlertManager(logger.Component("alerts"), monitoring.AlertConfig{
		HighLatencyThreshold: cfg.Monitoring.HighLatencyThreshold,
	})
	rt.requestLogger = monitoring.NewRequestLogger(logger.Component("requests"))

	rt.processor, err = actions.New(actions.Options{
		Resolver:      config.NewResolver(cfg),
		Invoker:       invoker,
		Limiter:       limiter,
		Drafts:        draftStore,
		Watermarker:   newWatermarker(cfg.Drafts.Watermark),
		Usage:         rt.usage,
		Catalog:       catalog,
		Tokens:        tokens.New(""),
		Metrics:       rt.metrics,
		Alerts:        rt.alerts,
		RequestLogger: rt.requestLogger,
		Tracker:       rt.tracker,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return rt, nil
}

func newWatermarker(cfg config.WatermarkConfig) imaging.Watermarker {
	if !cfg.Enabled {
		return imaging.NoopWatermarker{}
	}
	return imaging.NewTextWatermarker(cfg.Text)
}

// Close releases backends in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close backend")
		}
	}
	rt.closers = nil
}

// loggerConfig maps monitoring settings to a logger, forcing debug when asked.
func loggerConfig(cfg *config.Config, debug bool) monitoring.LoggerConfig {
	lc := monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	}
	if debug {
		lc.Level = "debug"
	}
	return lc
}
