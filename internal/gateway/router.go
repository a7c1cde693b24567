// Routes and handlers.
//
// DESIGN: Handlers only translate HTTP to actions.Request and back. All
// resolution, limiting and Bedrock logic stays in the actions package.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/compresr/bedrock-provider/internal/actions"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/store"
)

func (g *Gateway) registerRoutes() {
	g.app.GET("/health", g.handleHealth)
	g.app.POST("/v1/actions/:kind", g.handleAction)
	g.app.POST("/v1/actions/:kind/preview", g.handlePreview)
	g.app.GET("/v1/usage", g.handleUsage)
	if g.config.Monitoring.MetricsEnabled {
		g.app.GET("/metrics", echo.WrapHandler(g.metrics.Handler()))
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

func (g *Gateway) handleAction(c echo.Context) error {
	req, err := g.actionRequest(c)
	if err != nil {
		return err
	}

	res := g.processor.Run(c.Request().Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = res.ErrorCode
	}
	return c.JSON(status, res)
}

func (g *Gateway) handlePreview(c echo.Context) error {
	req, err := g.actionRequest(c)
	if err != nil {
		return err
	}

	preview, err := g.processor.Preview(req)
	if err != nil {
		res := actions.ResultFromError(err)
		return c.JSON(res.ErrorCode, res)
	}
	return c.JSON(http.StatusOK, preview)
}

func (g *Gateway) actionRequest(c echo.Context) (actions.Request, error) {
	kind, err := actions.ParseKind(c.Param("kind"))
	if err != nil {
		return actions.Request{}, requestError{
			Status:  http.StatusNotFound,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}

	var body ActionBody
	if err := decodeRequestBody(c, &body); err != nil {
		return actions.Request{}, err
	}
	if err := config.ValidateExtraOverride(body.ExtraParams); err != nil {
		return actions.Request{}, requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("extra_params: %v", err),
			Type:    "invalid_request_error",
		}
	}

	lang := body.Lang
	if lang == "" {
		lang = c.Request().Header.Get(HeaderAcceptLanguage)
	}

	return actions.Request{
		Kind:              kind,
		InstanceID:        body.InstanceID,
		UserID:            body.UserID,
		Prompt:            body.Prompt,
		Model:             body.Model,
		SystemInstruction: body.SystemInstruction,
		ExtraParams:       body.ExtraParams,
		Width:             body.Width,
		Height:            body.Height,
		Lang:              lang,
	}, nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, MaxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

// =============================================================================
// USAGE
// =============================================================================

func (g *Gateway) handleUsage(c echo.Context) error {
	if g.usage == nil {
		return requestError{
			Status:  http.StatusNotFound,
			Message: "usage ledger is disabled",
			Type:    "invalid_request_error",
		}
	}

	filter, err := usageFilter(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if summary, _ := strconv.ParseBool(c.QueryParam("summary")); summary {
		summaries, err := g.usage.Summarize(ctx, filter)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, UsageResponse{Summaries: summaries})
	}

	records, err := g.usage.List(ctx, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UsageResponse{Records: records})
}

func usageFilter(c echo.Context) (store.Filter, error) {
	f := store.Filter{
		InstanceID: c.QueryParam("instance_id"),
		Action:     c.QueryParam("action"),
		UserHash:   c.QueryParam("user_hash"),
	}
	if since := c.QueryParam("since"); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil || d <= 0 {
			return f, requestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("invalid since %q: want a duration such as 1h", since),
				Type:    "invalid_request_error",
			}
		}
		f.Since = time.Now().Add(-d)
	}
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return f, requestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("invalid limit %q", limit),
				Type:    "invalid_request_error",
			}
		}
		f.Limit = n
	}
	return f, nil
}

// =============================================================================
// HEALTH
// =============================================================================

func (g *Gateway) handleHealth(c echo.Context) error {
	resolver := g.processor.Resolver()
	resp := HealthResponse{
		Status:     "ok",
		Configured: resolver.Configured(""),
		Stats:      g.metrics.Stats(),
	}

	if ids := instanceIDs(g.config.Instances); len(ids) > 0 {
		resp.Instances = make(map[string]bool, len(ids))
		for _, id := range ids {
			resp.Instances[id] = resolver.Configured(id)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func instanceIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		if strings.TrimSpace(id) != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
