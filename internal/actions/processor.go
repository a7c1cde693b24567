package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/compresr/bedrock-provider/external"
	"github.com/compresr/bedrock-provider/internal/adapters"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/drafts"
	"github.com/compresr/bedrock-provider/internal/i18n"
	"github.com/compresr/bedrock-provider/internal/identity"
	"github.com/compresr/bedrock-provider/internal/imaging"
	"github.com/compresr/bedrock-provider/internal/monitoring"
	"github.com/compresr/bedrock-provider/internal/ratelimit"
	"github.com/compresr/bedrock-provider/internal/store"
	"github.com/compresr/bedrock-provider/internal/tokens"
)

// componentPrefix namespaces rate limit counters per provider instance.
const componentPrefix = "bedrock:"

// Rate limit scopes.
const (
	scopeUser   = "user"
	scopeGlobal = "global"
)

// Options wires a Processor. Resolver and Invoker are required; the rest
// fall back to in-process defaults.
type Options struct {
	Resolver    *config.Resolver
	Invoker     external.Invoker
	Registry    *adapters.Registry
	Limiter     ratelimit.Limiter
	Drafts      drafts.Store
	Watermarker imaging.Watermarker
	Usage       store.Store
	Catalog     *i18n.Catalog
	Tokens      *tokens.Estimator

	Metrics       *monitoring.MetricsCollector
	Alerts        *monitoring.AlertManager
	RequestLogger *monitoring.RequestLogger
	Tracker       *monitoring.Tracker

	// TempDir holds per-invocation image files. Empty uses os.TempDir.
	TempDir string
}

// Processor runs actions. It holds no per-invocation state and is safe for
// concurrent use.
type Processor struct {
	resolver    *config.Resolver
	invoker     external.Invoker
	registry    *adapters.Registry
	limiter     ratelimit.Limiter
	drafts      drafts.Store
	watermarker imaging.Watermarker
	usage       store.Store
	catalog     *i18n.Catalog
	tokens      *tokens.Estimator

	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	requestLogger *monitoring.RequestLogger
	tracker       *monitoring.Tracker

	tempDir string
	now     func() time.Time
}

// New creates a Processor.
func New(opts Options) (*Processor, error) {
	if opts.Resolver == nil {
		return nil, errors.New("actions: resolver is required")
	}
	if opts.Invoker == nil {
		return nil, errors.New("actions: invoker is required")
	}

	p := &Processor{
		resolver:      opts.Resolver,
		invoker:       opts.Invoker,
		registry:      opts.Registry,
		limiter:       opts.Limiter,
		drafts:        opts.Drafts,
		watermarker:   opts.Watermarker,
		usage:         opts.Usage,
		catalog:       opts.Catalog,
		tokens:        opts.Tokens,
		metrics:       opts.Metrics,
		alerts:        opts.Alerts,
		requestLogger: opts.RequestLogger,
		tracker:       opts.Tracker,
		tempDir:       opts.TempDir,
		now:           time.Now,
	}

	if p.registry == nil {
		p.registry = adapters.NewRegistry()
	}
	if p.limiter == nil {
		p.limiter = ratelimit.NewMemoryLimiter(ratelimit.DefaultWindow)
	}
	if p.watermarker == nil {
		p.watermarker = imaging.NoopWatermarker{}
	}
	if p.catalog == nil {
		p.catalog = i18n.Default()
	}
	if p.tokens == nil {
		p.tokens = tokens.New("")
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetricsCollector()
	}
	logger := monitoring.Nop()
	if p.alerts == nil {
		p.alerts = monitoring.NewAlertManager(logger, monitoring.AlertConfig{})
	}
	if p.requestLogger == nil {
		p.requestLogger = monitoring.NewRequestLogger(logger)
	}
	return p, nil
}

// Resolver returns the configuration resolver.
func (p *Processor) Resolver() *config.Resolver {
	return p.resolver
}

// invocation carries the state of one Run.
type invocation struct {
	req       Request
	requestID string
	state     State
	snap      config.Snapshot
	family    adapters.Family
	userHash  string

	requestSize   int
	responseSize  int
	invokeLatency time.Duration
}

// Run executes one action and always returns a Result.
func (p *Processor) Run(ctx context.Context, req Request) (res Result) {
	start := p.now()
	requestID := monitoring.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = monitoring.WithRequestIDContext(ctx, requestID)
	}
	inv := &invocation{req: req, requestID: requestID, state: StateBuilding}

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			p.alerts.FlagPanic(requestID, r, string(debug.Stack()))
			runErr = fmt.Errorf("panic: %v", r)
			res = ResultFromError(runErr)
		}
		p.finish(ctx, inv, res, runErr, p.now().Sub(start))
	}()

	res, runErr = p.run(ctx, inv)
	if runErr != nil {
		res = ResultFromError(runErr)
	}
	return res
}

func (p *Processor) run(ctx context.Context, inv *invocation) (Result, error) {
	req := inv.req
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return Result{}, newError(ErrorConfiguration, err)
	}

	// Resolve once; everything below reads the snapshot.
	snap, err := p.resolver.Resolve(req.InstanceID, string(req.Kind), req.overrides())
	if err != nil {
		return Result{}, newError(ErrorConfiguration, err)
	}
	inv.snap = snap
	if !snap.Configured() {
		return Result{}, &Error{
			Kind:    ErrorConfiguration,
			Message: p.catalog.T(req.Lang, i18n.ErrNotConfigured),
		}
	}

	inv.userHash = identity.New(snap.SiteIdentifier).Hash(req.UserID)

	if err := p.checkRateLimits(ctx, inv); err != nil {
		return Result{}, err
	}

	if req.Kind.Domain() == adapters.DomainImage {
		return p.runImage(ctx, inv)
	}
	return p.runText(ctx, inv)
}

// =============================================================================
// RATE LIMITS
// =============================================================================

// checkRateLimits checks the user limit, then the global limit. A limiter
// backend failure is logged and the action proceeds.
func (p *Processor) checkRateLimits(ctx context.Context, inv *invocation) error {
	snap := inv.snap
	component := componentPrefix + componentID(snap.InstanceID)

	if snap.UserRateLimit.Enabled {
		ok, err := p.limiter.CheckUserRateLimit(ctx, component, snap.UserRateLimit.Limit, inv.userHash)
		if err != nil {
			p.alerts.FlagLimiterFailure(inv.requestID, scopeUser, err)
		} else if !ok {
			return p.rateLimited(inv, scopeUser, i18n.ErrUserRateLimitReached)
		}
	}

	if snap.GlobalRateLimit.Enabled {
		ok, err := p.limiter.CheckGlobalRateLimit(ctx, component, snap.GlobalRateLimit.Limit)
		if err != nil {
			p.alerts.FlagLimiterFailure(inv.requestID, scopeGlobal, err)
		} else if !ok {
			return p.rateLimited(inv, scopeGlobal, i18n.ErrGlobalRateLimitReached)
		}
	}
	return nil
}

func (p *Processor) rateLimited(inv *invocation, scope, key string) error {
	p.metrics.RecordRateLimited(scope)
	p.alerts.FlagRateLimited(inv.requestID, inv.snap.InstanceID, scope)
	return &Error{
		Kind:    ErrorRateLimited,
		Message: p.catalog.T(inv.req.Lang, key),
	}
}

func componentID(instanceID string) string {
	if instanceID == "" {
		return "site"
	}
	return instanceID
}

// =============================================================================
// TEXT
// =============================================================================

func (p *Processor) runText(ctx context.Context, inv *invocation) (Result, error) {
	adapter, body, err := p.buildText(inv.req, inv.snap)
	if err != nil {
		return Result{}, err
	}
	inv.family = adapter.Family()
	p.logStarted(inv)

	respBody, err := p.invoke(ctx, inv, body)
	if err != nil {
		return Result{}, err
	}

	inv.state = StateNormalizing
	out, err := adapter.Normalize(respBody)
	if err != nil {
		return Result{}, newError(ErrorMalformedResponse, err)
	}

	inv.state = StateSucceeded
	return Result{
		Success:          true,
		ID:               out.ID,
		GeneratedContent: out.Content,
		FinishReason:     out.FinishReason,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	}, nil
}

func (p *Processor) buildText(req Request, snap config.Snapshot) (adapters.TextAdapter, []byte, error) {
	adapter, err := p.registry.Text(snap.Model)
	if err != nil {
		return nil, nil, newError(ErrorConfiguration, err)
	}
	prompt, instruction := shapePrompt(req.Kind, req.Prompt, snap.SystemInstruction)
	body, err := adapter.Build(adapters.BuildInput{
		ModelID:           snap.Model,
		Prompt:            prompt,
		SystemInstruction: instruction,
		ExtraParams:       snap.ExtraParams,
	})
	if err != nil {
		return nil, nil, newError(ErrorConfiguration, err)
	}
	return adapter, body, nil
}

// =============================================================================
// IMAGE
// =============================================================================

func (p *Processor) runImage(ctx context.Context, inv *invocation) (Result, error) {
	adapter, body, err := p.buildImage(inv.req, inv.snap)
	if err != nil {
		return Result{}, err
	}
	inv.family = adapter.Family()
	p.logStarted(inv)

	respBody, err := p.invoke(ctx, inv, body)
	if err != nil {
		return Result{}, err
	}

	inv.state = StateNormalizing
	img, err := adapter.Extract(respBody)
	if err != nil {
		return Result{}, p.extractionError(inv.req.Lang, err)
	}

	draft, err := p.storeImage(ctx, inv, img.Base64)
	if err != nil {
		return Result{}, &Error{
			Kind:    ErrorPostProcess,
			Message: p.catalog.T(inv.req.Lang, i18n.ErrFailedProcessImage, err.Error()),
			Err:     err,
		}
	}

	inv.state = StateSucceeded
	return Result{
		Success:   true,
		ID:        img.ID,
		DraftFile: draft,
	}, nil
}

func (p *Processor) buildImage(req Request, snap config.Snapshot) (adapters.ImageAdapter, []byte, error) {
	adapter, err := p.registry.Image(snap.Model)
	if err != nil {
		return nil, nil, newError(ErrorConfiguration, err)
	}
	prompt, _ := shapePrompt(req.Kind, req.Prompt, "")
	body, err := adapter.Build(adapters.BuildInput{
		ModelID: snap.Model,
		Prompt:  prompt,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		return nil, nil, newError(ErrorConfiguration, err)
	}
	return adapter, body, nil
}

// extractionError localises a missing-image failure and keeps the response
// excerpt some families attach.
func (p *Processor) extractionError(lang string, err error) error {
	if errors.Is(err, adapters.ErrMalformedResponse) {
		return newError(ErrorMalformedResponse, err)
	}
	msg := p.catalog.T(lang, i18n.ErrNoImageData)
	var ee *adapters.ExtractionError
	if errors.As(err, &ee) && ee.Received != "" {
		msg += " Received: " + ee.Received
	}
	return &Error{Kind: ErrorExtraction, Message: msg, Err: err}
}

// storeImage decodes the image to a temp file, watermarks it and creates the
// draft. The temp file is always removed.
func (p *Processor) storeImage(ctx context.Context, inv *invocation, b64 string) (*drafts.DraftFile, error) {
	if p.drafts == nil {
		return nil, errors.New("no draft store configured")
	}

	path, err := imaging.DecodeToTemp(b64, p.tempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			monitoring.FromContext(ctx).Warn().Err(err).Str("path", path).Msg("failed to remove temp image")
		}
	}()

	if err := p.watermarker.Watermark(path); err != nil {
		return nil, err
	}

	return p.drafts.CreateDraftFile(ctx, drafts.FileMeta{
		UserID:   inv.userHash,
		Filename: drafts.ImageFilename(p.now()),
		MimeType: drafts.ImageMimeType,
	}, path)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (p *Processor) invoke(ctx context.Context, inv *invocation, body []byte) ([]byte, error) {
	inv.state = StateCalling
	inv.requestSize = len(body)
	snap := inv.snap

	start := time.Now()
	out, err := p.invoker.InvokeModel(ctx, &external.InvokeInput{
		ModelID:     snap.Model,
		Body:        body,
		ContentType: external.ContentTypeJSON,
		Accept:      external.ContentTypeJSON,
		Region:      snap.Region,
		Credentials: external.Credentials{
			AccessKeyID:     snap.Credentials.AccessKeyID,
			SecretAccessKey: snap.Credentials.SecretAccessKey,
			SessionToken:    snap.Credentials.SessionToken,
		},
		UseDefaultChain: snap.UseDefaultChain,
	})
	inv.invokeLatency = time.Since(start)

	info := &monitoring.InvokeInfo{
		RequestID:   inv.requestID,
		Model:       snap.Model,
		Region:      snap.Region,
		RequestSize: inv.requestSize,
		Latency:     inv.invokeLatency,
	}
	if err != nil {
		info.StatusCode = external.StatusCode(err)
		p.requestLogger.LogInvoke(info)
		p.alerts.FlagProviderError(inv.requestID, snap.Model, info.StatusCode, err.Error())
		return nil, newError(ErrorTransport, err)
	}

	inv.responseSize = len(out.Body)
	info.ResponseSize = inv.responseSize
	p.requestLogger.LogInvoke(info)
	return out.Body, nil
}

// =============================================================================
// PREVIEW
// =============================================================================

// Preview resolves and builds the request body without invoking Bedrock or
// consuming rate limit slots.
func (p *Processor) Preview(req Request) (*Preview, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, newError(ErrorConfiguration, err)
	}
	snap, err := p.resolver.Resolve(req.InstanceID, string(req.Kind), req.overrides())
	if err != nil {
		return nil, newError(ErrorConfiguration, err)
	}

	var (
		adapter adapters.Adapter
		body    []byte
	)
	if req.Kind.Domain() == adapters.DomainImage {
		adapter, body, err = p.buildImage(req, snap)
	} else {
		adapter, body, err = p.buildText(req, snap)
	}
	if err != nil {
		return nil, err
	}

	prompt, instruction := shapePrompt(req.Kind, req.Prompt, snap.SystemInstruction)
	if req.Kind.Domain() == adapters.DomainImage {
		instruction = ""
	}
	return &Preview{
		Kind:                  req.Kind,
		Model:                 snap.Model,
		Family:                adapter.Family(),
		Region:                snap.Region,
		Body:                  body,
		EstimatedPromptTokens: p.tokens.Count(prompt) + p.tokens.Count(instruction),
	}, nil
}

// =============================================================================
// BOOKKEEPING
// =============================================================================

func (p *Processor) logStarted(inv *invocation) {
	p.requestLogger.LogActionStarted(&monitoring.ActionInfo{
		RequestID:  inv.requestID,
		InstanceID: inv.snap.InstanceID,
		Kind:       string(inv.req.Kind),
		Model:      inv.snap.Model,
		Family:     string(inv.family),
		UserHash:   inv.userHash,
	})
}

// finish records the outcome in logs, metrics, telemetry and the usage ledger.
func (p *Processor) finish(ctx context.Context, inv *invocation, res Result, err error, latency time.Duration) {
	if !res.Success {
		inv.state = StateFailed
	}
	kind := string(inv.req.Kind)
	errKind := string(KindOf(err))

	p.requestLogger.LogActionFinished(&monitoring.ActionOutcome{
		RequestID:    inv.requestID,
		Kind:         kind,
		Family:       string(inv.family),
		Success:      res.Success,
		State:        string(inv.state),
		ErrorKind:    errKind,
		ErrorCode:    res.ErrorCode,
		FinishReason: res.FinishReason,
		Latency:      latency,
	})
	p.alerts.FlagHighLatency(inv.requestID, latency, kind, inv.snap.Model)
	p.metrics.RecordAction(kind, string(inv.family), res.Success, latency, res.PromptTokens, res.CompletionTokens)

	p.tracker.RecordAction(&monitoring.ActionEvent{
		RequestID:        inv.requestID,
		Timestamp:        p.now(),
		InstanceID:       inv.snap.InstanceID,
		Kind:             kind,
		Model:            inv.snap.Model,
		Family:           string(inv.family),
		Region:           inv.snap.Region,
		UserHash:         inv.userHash,
		RequestBodySize:  inv.requestSize,
		ResponseBodySize: inv.responseSize,
		Success:          res.Success,
		ErrorKind:        errKind,
		ErrorCode:        res.ErrorCode,
		FinishReason:     res.FinishReason,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		InvokeLatencyMs:  inv.invokeLatency.Milliseconds(),
		TotalLatencyMs:   latency.Milliseconds(),
	})

	if p.usage == nil {
		return
	}
	rec := store.Record{
		ID:               uuid.NewString(),
		RequestID:        inv.requestID,
		InstanceID:       inv.snap.InstanceID,
		Action:           kind,
		Model:            inv.snap.Model,
		Family:           string(inv.family),
		UserHash:         inv.userHash,
		Success:          res.Success,
		ErrorCode:        res.ErrorCode,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		LatencyMs:        latency.Milliseconds(),
		CreatedAt:        p.now(),
	}
	// Recorded even when the caller has gone away.
	if err := p.usage.Record(context.WithoutCancel(ctx), rec); err != nil {
		monitoring.FromContext(ctx).Error().Err(err).Msg("failed to record usage")
	}
}
