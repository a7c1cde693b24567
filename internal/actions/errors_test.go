package actions

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/bedrock-provider/external"
)

func TestResultFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, 500, "Unknown error"},
		{"foreign error", errors.New("boom"), 500, "boom"},
		{"foreign transport error", &external.InvokeError{StatusCode: 503, Message: "unavailable"}, 503, ""},
		{"configuration", newError(ErrorConfiguration, errors.New("model not configured")), 500, "model not configured"},
		{"rate limited", &Error{Kind: ErrorRateLimited, Message: "User rate limit exceeded"}, 429, "User rate limit exceeded"},
		{"transport with status", newError(ErrorTransport, &external.InvokeError{StatusCode: 400, Message: "bad"}), 400, ""},
		{"transport without status", newError(ErrorTransport, errors.New("dial tcp: timeout")), 500, "dial tcp: timeout"},
		{"malformed", newError(ErrorMalformedResponse, errors.New("malformed response")), 500, "malformed response"},
		{"extraction", &Error{Kind: ErrorExtraction, Message: "No image data found in the response"}, 500, "No image data found in the response"},
		{"post process", &Error{Kind: ErrorPostProcess, Message: "Failed to process image: x"}, 500, "Failed to process image: x"},
		{"explicit code wins", &Error{Kind: ErrorTransport, Code: 418, Message: "teapot"}, 418, "teapot"},
		{"wrapped", fmt.Errorf("outer: %w", &Error{Kind: ErrorRateLimited, Message: "limited"}), 429, "limited"},
		{"empty message", &Error{Kind: ErrorExtraction}, 500, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResultFromError(tt.err)

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.ErrorMessage)
			}
			assert.NotEmpty(t, res.ErrorMessage)
		})
	}
}

func TestResultFromError_Pure(t *testing.T) {
	err := newError(ErrorTransport, &external.InvokeError{StatusCode: http.StatusForbidden, Message: "denied"})
	assert.Equal(t, ResultFromError(err), ResultFromError(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorPostProcess, KindOf(fmt.Errorf("wrap: %w", &Error{Kind: ErrorPostProcess})))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestShapePrompt(t *testing.T) {
	tests := []struct {
		name            string
		kind            Kind
		prompt          string
		instruction     string
		wantPrompt      string
		wantInstruction string
	}{
		{"text keeps prompt", KindGenerateText, "Hi", "Be nice", "Hi", "Be nice"},
		{"text placeholder", KindGenerateText, "  ", "", DefaultTextPrompt, ""},
		{"summary wraps", KindSummariseText, "Body", "Short", "Please summarize the following text:\n\nBody", "Short"},
		{"summary placeholder", KindSummariseText, "", "", "Please summarize the following text:\n\n" + DefaultSummaryText, DefaultSummaryInstruction},
		{"image placeholder", KindGenerateImage, "", "ignored", DefaultImagePrompt, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, i := shapePrompt(tt.kind, tt.prompt, tt.instruction)
			assert.Equal(t, tt.wantPrompt, p)
			assert.Equal(t, tt.wantInstruction, i)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("summarise_text")
	assert.NoError(t, err)
	assert.Equal(t, KindSummariseText, k)

	_, err = ParseKind("summarize")
	assert.Error(t, err)
}
