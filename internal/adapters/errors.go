package adapters

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the response body is not a JSON object.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoImageData means no known image field was found in an image response.
	ErrNoImageData = errors.New("no image data found in the response")

	// ErrUnknownFamily means no adapter is registered for a family.
	ErrUnknownFamily = errors.New("unknown model family")
)

// maxDebugDump bounds the response excerpt attached to extraction errors.
const maxDebugDump = 1000

// ExtractionError reports a well-formed image response without image data.
// Received holds a bounded excerpt of the response when the family provides one.
type ExtractionError struct {
	Family   Family
	Received string
}

func (e *ExtractionError) Error() string {
	if e.Received == "" {
		return fmt.Sprintf("%s: %s", e.Family, ErrNoImageData)
	}
	return fmt.Sprintf("%s: %s Received: %s", e.Family, ErrNoImageData, e.Received)
}

// Unwrap lets errors.Is match ErrNoImageData.
func (e *ExtractionError) Unwrap() error {
	return ErrNoImageData
}

// debugDump returns the compact response truncated to maxDebugDump bytes.
func debugDump(body []byte) string {
	dump := compactJSON(body)
	if len(dump) > maxDebugDump {
		dump = dump[:maxDebugDump] + "..."
	}
	return dump
}
