// Package external provides the Bedrock Runtime transport.
//
// DESIGN: The orchestrator only sees the narrow Invoker interface: one
// InvokeModel round trip with an opaque JSON body in and an opaque JSON body
// out. Two implementations exist:
//
//   - SDKInvoker:  aws-sdk-go-v2 bedrockruntime client (default)
//   - HTTPInvoker: net/http with a SigV4 signing RoundTripper
//
// Neither retries. Failures carry the upstream HTTP status when one exists,
// readable with StatusCode(err).
package external

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds a single InvokeModel call.
	DefaultTimeout = 120 * time.Second

	// ContentTypeJSON is used for both request and response bodies.
	ContentTypeJSON = "application/json"

	// DefaultRegion is used when an input carries no region.
	DefaultRegion = "eu-west-1"

	// maxResponseSize prevents OOM on unexpectedly large responses (32MB, images included).
	maxResponseSize = 32 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	// bedrockService is the SigV4 signing name for bedrock-runtime.
	bedrockService = "bedrock"

	// bedrockHostPattern is the regional bedrock-runtime endpoint.
	bedrockHostPattern = "https://bedrock-runtime.%s.amazonaws.com"
)

// Credentials are static AWS credentials for one invocation.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// InvokeInput is one InvokeModel call.
type InvokeInput struct {
	ModelID     string
	Body        []byte
	ContentType string // defaults to application/json
	Accept      string // defaults to application/json

	Region          string
	Credentials     Credentials
	UseDefaultChain bool // ignore Credentials and use the AWS default chain
}

// InvokeOutput is the raw model response.
type InvokeOutput struct {
	Body        []byte
	ContentType string
}

// Invoker sends InvokeModel requests to Bedrock Runtime.
type Invoker interface {
	InvokeModel(ctx context.Context, in *InvokeInput) (*InvokeOutput, error)
}

func (in *InvokeInput) contentType() string {
	if in.ContentType != "" {
		return in.ContentType
	}
	return ContentTypeJSON
}

func (in *InvokeInput) accept() string {
	if in.Accept != "" {
		return in.Accept
	}
	return ContentTypeJSON
}

func (in *InvokeInput) region() string {
	if in.Region != "" {
		return in.Region
	}
	return DefaultRegion
}
