// Package imaging turns base64 model output into image files.
//
// DESIGN: The orchestrator owns the temp file lifecycle. DecodeToTemp writes
// one file per invocation and the caller removes it once the draft exists.
package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyImage means the decoded payload has no bytes.
var ErrEmptyImage = errors.New("decoded image is empty")

// StripDataURI removes a leading "data:image/<type>;base64," prefix.
func StripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 11 || !strings.EqualFold(s[:11], "data:image/") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Decode strips any data URI prefix and decodes standard or unpadded base64.
// Whitespace and line breaks inside the payload are ignored.
func Decode(b64 string) ([]byte, error) {
	payload := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, StripDataURI(b64))

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// DecodeToTemp decodes b64 into a new file under dir (os.TempDir when empty)
// and returns its path.
func DecodeToTemp(b64, dir string) (string, error) {
	data, err := Decode(b64)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "bedrock_img_*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, nil
}
