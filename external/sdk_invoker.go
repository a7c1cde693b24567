package external

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"
)

// runtimeClient is the subset of *bedrockruntime.Client used here.
type runtimeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// SDKInvoker calls InvokeModel through the bedrockruntime client.
// Clients are cached per region and credential set.
type SDKInvoker struct {
	timeout  time.Duration
	endpoint string

	mu      sync.Mutex
	clients map[string]runtimeClient

	// newClient is replaced in tests.
	newClient func(ctx context.Context, in *InvokeInput) (runtimeClient, error)
}

// SDKOption configures an SDKInvoker.
type SDKOption func(*SDKInvoker)

// WithSDKEndpoint overrides the bedrock-runtime base endpoint.
func WithSDKEndpoint(endpoint string) SDKOption {
	return func(s *SDKInvoker) { s.endpoint = endpoint }
}

// NewSDKInvoker creates an SDK-backed invoker. A zero timeout uses DefaultTimeout.
func NewSDKInvoker(timeout time.Duration, opts ...SDKOption) *SDKInvoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &SDKInvoker{
		timeout: timeout,
		clients: make(map[string]runtimeClient),
	}
	s.newClient = s.buildClient
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvokeModel performs a single InvokeModel call. The SDK retryer is
// limited to one attempt.
func (s *SDKInvoker) InvokeModel(ctx context.Context, in *InvokeInput) (*InvokeOutput, error) {
	client, err := s.client(ctx, in)
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, Message: err.Error(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(in.ModelID),
		Body:        in.Body,
		ContentType: aws.String(in.contentType()),
		Accept:      aws.String(in.accept()),
	})
	if err != nil {
		return nil, wrapSDKError(in.ModelID, err)
	}

	return &InvokeOutput{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (s *SDKInvoker) client(ctx context.Context, in *InvokeInput) (runtimeClient, error) {
	key := clientKey(in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	c, err := s.newClient(ctx, in)
	if err != nil {
		return nil, err
	}
	s.clients[key] = c
	log.Debug().Str("region", in.region()).Bool("default_chain", in.UseDefaultChain).Msg("bedrock client created")
	return c, nil
}

func (s *SDKInvoker) buildClient(ctx context.Context, in *InvokeInput) (runtimeClient, error) {
	provider, err := credentialsProvider(ctx, in)
	if err != nil {
		return nil, err
	}

	cfg := aws.Config{
		Region:      in.region(),
		Credentials: provider,
	}
	return bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
	}), nil
}

var _ Invoker = (*SDKInvoker)(nil)

// New returns the invoker for mode ("sdk" or "http").
func New(mode string, timeout time.Duration, endpoint string) (Invoker, error) {
	switch mode {
	case "", "sdk":
		var opts []SDKOption
		if endpoint != "" {
			opts = append(opts, WithSDKEndpoint(endpoint))
		}
		return NewSDKInvoker(timeout, opts...), nil
	case "http":
		return NewHTTPInvoker(timeout, endpoint, nil), nil
	default:
		return nil, fmt.Errorf("unknown transport mode %q", mode)
	}
}
