package external

import (
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// InvokeError is a failed InvokeModel call. StatusCode is 0 when the call
// never produced an HTTP response.
type InvokeError struct {
	ModelID    string
	StatusCode int
	Code       string // service error code, e.g. ThrottlingException
	Message    string
	Err        error
}

func (e *InvokeError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("bedrock invoke %s returned status %d (%s): %s", e.ModelID, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("bedrock invoke %s returned status %d: %s", e.ModelID, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("bedrock invoke %s failed: %s", e.ModelID, e.Message)
	}
}

func (e *InvokeError) Unwrap() error { return e.Err }

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ie *InvokeError
	if errors.As(err, &ie) && ie.StatusCode != 0 {
		return ie.StatusCode
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// wrapSDKError converts an SDK error into an InvokeError.
func wrapSDKError(modelID string, err error) error {
	ie := &InvokeError{ModelID: modelID, Message: err.Error(), Err: err}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		ie.StatusCode = re.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		ie.Code = apiErr.ErrorCode()
		ie.Message = apiErr.ErrorMessage()
	}
	return ie
}

// truncateErrorBody bounds an upstream error body for messages and logs.
func truncateErrorBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "... (truncated)"
	}
	return s
}
