package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ApplyExtraParams shallow-merges a JSON object over a built payload.
//
// Every top-level key of extra replaces the payload key entirely and keeps its
// position; keys the payload lacks are appended. Nested objects are never
// merged. The empty key is a key like any other. Empty input, invalid JSON and
// non-object values leave the payload untouched.
func ApplyExtraParams(payload, extra []byte) ([]byte, error) {
	extra = bytes.TrimSpace(extra)
	if len(extra) == 0 || !gjson.ValidBytes(extra) {
		return payload, nil
	}
	// Stored settings are pretty printed; merged values stay compact.
	var compact bytes.Buffer
	if err := json.Compact(&compact, extra); err == nil {
		extra = compact.Bytes()
	}
	parsed := gjson.ParseBytes(extra)
	if !parsed.IsObject() {
		return payload, nil
	}

	out := payload
	var setErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		if key.Str == "" {
			out, setErr = setEmptyKey(out, []byte(value.Raw))
		} else {
			out, setErr = sjson.SetRawBytes(out, escapePathKey(key.Str), []byte(value.Raw))
		}
		if setErr != nil {
			setErr = fmt.Errorf("apply extra param %q: %w", key.Str, setErr)
			return false
		}
		return true
	})
	if setErr != nil {
		return nil, setErr
	}
	return out, nil
}

// setEmptyKey sets the "" key, which has no sjson path form. An existing ""
// key keeps its position.
func setEmptyKey(payload, raw []byte) ([]byte, error) {
	obj := gjson.ParseBytes(payload)
	if !obj.IsObject() {
		return nil, errors.New("payload is not a JSON object")
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + len(raw) + 4)
	buf.WriteByte('{')
	n, replaced := 0, false
	obj.ForEach(func(key, value gjson.Result) bool {
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		buf.WriteString(key.Raw)
		buf.WriteByte(':')
		if key.Str == "" {
			buf.Write(raw)
			replaced = true
		} else {
			buf.WriteString(value.Raw)
		}
		return true
	})
	if !replaced {
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"":`)
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// escapePathKey turns a literal object key into a single sjson path segment.
func escapePathKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 2)
	for i := 0; i < len(key); i++ {
		switch c := key[i]; c {
		case '.', '*', '?', '|', '#', '@', ':', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// marshal encodes v without HTML escaping so prompts reach the model verbatim.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// compactJSON returns body without insignificant whitespace.
func compactJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}
