package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticInput(modelID string, body string) *InvokeInput {
	return &InvokeInput{
		ModelID: modelID,
		Body:    []byte(body),
		Region:  "eu-west-1",
		Credentials: Credentials{
			AccessKeyID:     "AKIDTEST",
			SecretAccessKey: "secret",
			SessionToken:    "session-token",
		},
	}
}

// =============================================================================
// HTTP INVOKER
// =============================================================================

func TestHTTPInvoker_SignsAndPosts(t *testing.T) {
	var gotPath, gotAuth, gotToken, gotContentType, gotAccept, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotToken = r.Header.Get("X-Amz-Security-Token")
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"text":"hi"}]}`))
	}))
	defer server.Close()

	invoker := NewHTTPInvoker(5*time.Second, server.URL, nil)
	out, err := invoker.InvokeModel(context.Background(), staticInput("anthropic.claude-3-5-sonnet-20240620-v1:0", `{"prompt":"x"}`))

	require.NoError(t, err)
	assert.Equal(t, `{"content":[{"text":"hi"}]}`, string(out.Body))
	assert.Equal(t, "application/json", out.ContentType)
	assert.Equal(t, "/model/anthropic.claude-3-5-sonnet-20240620-v1%3A0/invoke", gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIDTEST/"), gotAuth)
	assert.Contains(t, gotAuth, "/eu-west-1/bedrock/aws4_request")
	assert.Equal(t, "session-token", gotToken)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, `{"prompt":"x"}`, gotBody)
}

func TestHTTPInvoker_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Amzn-ErrorType", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("slow down ", 100)))
	}))
	defer server.Close()

	_, err := NewHTTPInvoker(time.Second, server.URL, nil).InvokeModel(context.Background(), staticInput("meta.llama3", `{}`))

	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Contains(t, err.Error(), "ThrottlingException")
	assert.Contains(t, err.Error(), "... (truncated)")
}

func TestHTTPInvoker_MissingCredentials(t *testing.T) {
	in := staticInput("meta.llama3", `{}`)
	in.Credentials = Credentials{}

	_, err := NewHTTPInvoker(time.Second, "http://127.0.0.1:1", nil).InvokeModel(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, StatusCode(err))
}

func TestHTTPInvoker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewHTTPInvoker(50*time.Millisecond, server.URL, nil).InvokeModel(context.Background(), staticInput("meta.llama3", `{}`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
	assert.Zero(t, StatusCode(err))
}

func TestHTTPInvoker_RegionalURL(t *testing.T) {
	h := NewHTTPInvoker(0, "", nil)

	got, err := h.invokeURL(&InvokeInput{ModelID: "amazon.nova-canvas-v1:0", Region: "us-west-2"})

	require.NoError(t, err)
	assert.Equal(t, "https://bedrock-runtime.us-west-2.amazonaws.com/model/amazon.nova-canvas-v1%3A0/invoke", got)
}

// =============================================================================
// SDK INVOKER
// =============================================================================

type fakeRuntime struct {
	out   *bedrockruntime.InvokeModelOutput
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestSDKInvoker_InvokeModel(t *testing.T) {
	contentType := "application/json"
	fake := &fakeRuntime{out: &bedrockruntime.InvokeModelOutput{Body: []byte(`{"images":["QUJD"]}`), ContentType: &contentType}}
	var built atomic.Int32

	s := NewSDKInvoker(time.Second)
	s.newClient = func(context.Context, *InvokeInput) (runtimeClient, error) {
		built.Add(1)
		return fake, nil
	}

	for i := 0; i < 3; i++ {
		out, err := s.InvokeModel(context.Background(), staticInput("amazon.nova-canvas-v1:0", `{"taskType":"TEXT_IMAGE"}`))
		require.NoError(t, err)
		assert.Equal(t, `{"images":["QUJD"]}`, string(out.Body))
		assert.Equal(t, "application/json", out.ContentType)
	}

	assert.EqualValues(t, 1, built.Load())
	require.NotNil(t, fake.input)
	assert.Equal(t, "amazon.nova-canvas-v1:0", *fake.input.ModelId)
	assert.Equal(t, "application/json", *fake.input.ContentType)
	assert.Equal(t, "application/json", *fake.input.Accept)

	other := staticInput("amazon.nova-canvas-v1:0", `{}`)
	other.Region = "us-east-1"
	_, err := s.InvokeModel(context.Background(), other)
	require.NoError(t, err)
	assert.EqualValues(t, 2, built.Load())
}

func TestSDKInvoker_ServiceError(t *testing.T) {
	apiErr := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadRequest}},
			Err:      &smithy.GenericAPIError{Code: "ValidationException", Message: "Malformed input request"},
		},
	}
	s := NewSDKInvoker(time.Second)
	s.newClient = func(context.Context, *InvokeInput) (runtimeClient, error) {
		return &fakeRuntime{err: apiErr}, nil
	}

	_, err := s.InvokeModel(context.Background(), staticInput("meta.llama3", `{}`))

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	var ie *InvokeError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "ValidationException", ie.Code)
	assert.Equal(t, "Malformed input request", ie.Message)
}

func TestSDKInvoker_MissingCredentials(t *testing.T) {
	in := staticInput("meta.llama3", `{}`)
	in.Credentials.SecretAccessKey = ""

	_, err := NewSDKInvoker(time.Second).InvokeModel(context.Background(), in)

	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNew_Modes(t *testing.T) {
	inv, err := New("", 0, "")
	require.NoError(t, err)
	assert.IsType(t, &SDKInvoker{}, inv)

	inv, err = New("http", 0, "http://localhost:9000")
	require.NoError(t, err)
	assert.IsType(t, &HTTPInvoker{}, inv)

	_, err = New("grpc", 0, "")
	assert.Error(t, err)
}

func TestStatusCode_PlainError(t *testing.T) {
	assert.Zero(t, StatusCode(errors.New("boom")))
	assert.Zero(t, StatusCode(nil))
}
