package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// SigningTransport is an http.RoundTripper that signs requests with AWS SigV4
// for the bedrock-runtime service.
type SigningTransport struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	base        http.RoundTripper
	now         func() time.Time
}

// NewSigningTransport creates a signing transport. A nil base uses http.DefaultTransport.
func NewSigningTransport(credentials aws.CredentialsProvider, region string, base http.RoundTripper) *SigningTransport {
	if region == "" {
		region = DefaultRegion
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &SigningTransport{
		credentials: credentials,
		region:      region,
		signer:      v4.NewSigner(),
		base:        base,
		now:         time.Now,
	}
}

// RoundTrip implements http.RoundTripper. It signs the request with SigV4 before sending.
func (t *SigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body for signing: %w", err)
		}
		_ = req.Body.Close()
	}

	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	signed := req.Clone(req.Context())
	signed.Body = io.NopCloser(bytes.NewReader(body))
	signed.ContentLength = int64(len(body))

	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := t.signer.SignHTTP(req.Context(), creds, signed, payloadHash, bedrockService, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("failed to sign Bedrock request: %w", err)
	}

	signed.Body = io.NopCloser(bytes.NewReader(body))
	return t.base.RoundTrip(signed)
}

// HTTPInvoker calls InvokeModel over plain HTTPS with SigV4 signing.
type HTTPInvoker struct {
	timeout  time.Duration
	endpoint string // overrides the regional endpoint when set
	base     http.RoundTripper
}

// NewHTTPInvoker creates an HTTP invoker. Empty endpoint targets the regional
// bedrock-runtime host. A nil base uses http.DefaultTransport.
func NewHTTPInvoker(timeout time.Duration, endpoint string, base http.RoundTripper) *HTTPInvoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPInvoker{
		timeout:  timeout,
		endpoint: strings.TrimRight(endpoint, "/"),
		base:     base,
	}
}

// InvokeModel posts the body to /model/{modelId}/invoke.
func (h *HTTPInvoker) InvokeModel(ctx context.Context, in *InvokeInput) (*InvokeOutput, error) {
	provider, err := credentialsProvider(ctx, in)
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, Message: err.Error(), Err: err}
	}

	target, err := h.invokeURL(in)
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, Message: err.Error(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(in.Body))
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", in.contentType())
	req.Header.Set("Accept", in.accept())

	client := &http.Client{Transport: NewSigningTransport(provider, in.region(), h.base)} // timeout via context
	resp, err := client.Do(req)
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &InvokeError{ModelID: in.ModelID, StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &InvokeError{
			ModelID:    in.ModelID,
			StatusCode: resp.StatusCode,
			Code:       resp.Header.Get("X-Amzn-ErrorType"),
			Message:    truncateErrorBody(respBody),
		}
	}

	return &InvokeOutput{Body: respBody, ContentType: resp.Header.Get("Content-Type")}, nil
}

// invokeURL builds the target URL. The model id is one escaped path segment;
// ':' is escaped too since Bedrock expects it encoded.
func (h *HTTPInvoker) invokeURL(in *InvokeInput) (string, error) {
	if in.ModelID == "" {
		return "", fmt.Errorf("model id is required")
	}
	base := h.endpoint
	if base == "" {
		base = fmt.Sprintf(bedrockHostPattern, in.region())
	}
	segment := strings.ReplaceAll(url.PathEscape(in.ModelID), ":", "%3A")
	u, err := url.Parse(base + "/model/" + segment + "/invoke")
	if err != nil {
		return "", fmt.Errorf("invalid bedrock endpoint: %w", err)
	}
	return u.String(), nil
}

var _ Invoker = (*HTTPInvoker)(nil)
