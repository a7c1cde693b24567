// Package gateway exposes the action processor over HTTP.
//
// DESIGN: A thin echo server in front of actions.Processor:
//   - POST /v1/actions/:kind          run one action
//   - POST /v1/actions/:kind/preview  build the request body without sending it
//   - GET  /v1/usage                  usage ledger records or summaries
//   - GET  /health                    liveness and provider configuration
//   - GET  /metrics                   Prometheus metrics (when enabled)
//
// A failed action answers with its Result and the Result's error code as the
// HTTP status, so hosts can branch on either.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/compresr/bedrock-provider/internal/actions"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/monitoring"
	"github.com/compresr/bedrock-provider/internal/store"
)

// Options wires a Gateway. Processor is required.
type Options struct {
	Processor     *actions.Processor
	Usage         store.Store
	Metrics       *monitoring.MetricsCollector
	Alerts        *monitoring.AlertManager
	RequestLogger *monitoring.RequestLogger
}

// Gateway is the HTTP front end.
type Gateway struct {
	config        *config.Config
	processor     *actions.Processor
	usage         store.Store
	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	requestLogger *monitoring.RequestLogger
	rateLimiter   *rateLimiter

	app    *echo.Echo
	server *http.Server
}

// New creates a gateway and registers its routes.
func New(cfg *config.Config, opts Options) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("gateway: config is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("gateway: processor is required")
	}

	g := &Gateway{
		config:        cfg,
		processor:     opts.Processor,
		usage:         opts.Usage,
		metrics:       opts.Metrics,
		alerts:        opts.Alerts,
		requestLogger: opts.RequestLogger,
	}
	if g.metrics == nil {
		g.metrics = monitoring.NewMetricsCollector()
	}
	if g.alerts == nil {
		g.alerts = monitoring.NewAlertManager(monitoring.Nop(), monitoring.AlertConfig{})
	}
	if g.requestLogger == nil {
		g.requestLogger = monitoring.NewRequestLogger(monitoring.Nop())
	}
	if cfg.Server.IPRateLimit > 0 {
		g.rateLimiter = newRateLimiter(cfg.Server.IPRateLimit)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	// Order matters: recovery must see panics from every later layer.
	e.Use(g.panicRecovery)
	e.Use(g.loggingMiddleware)
	e.Use(g.security)
	if g.rateLimiter != nil {
		e.Use(g.rateLimit)
	}

	g.app = e
	g.registerRoutes()
	return g, nil
}

// Handler returns the HTTP handler. Used by tests and embedding hosts.
func (g *Gateway) Handler() http.Handler {
	return g.app
}

// Start serves on server.port and blocks until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", g.config.Server.Port),
		Handler:      g.app,
		ReadTimeout:  g.config.Server.ReadTimeout,
		WriteTimeout: g.config.Server.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	log.Info().Int("port", g.config.Server.Port).Msg("bedrock provider listening")

	errCh := make(chan error, 1)
	go func() {
		if err := g.app.StartServer(g.server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return g.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server gracefully.
func (g *Gateway) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := g.app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server shutdown complete")
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

func writeError(c echo.Context, status int, message, errType string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}
