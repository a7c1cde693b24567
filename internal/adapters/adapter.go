// Package adapters provides model-family-specific request shaping for Bedrock.
//
// DESIGN: Bedrock hosts several model vendors behind one InvokeModel call.
// Each vendor expects its own JSON body and answers with its own JSON shape.
// Adapters hide those differences behind two small interfaces:
//
//   - TextAdapter:  Build(input) / Normalize(body) -> TextOutput
//   - ImageAdapter: Build(input) / Extract(body)   -> ImageOutput
//
// FLOW:
//  1. Classify(modelID, domain) picks a Family (pure, total)
//  2. Registry maps the Family to exactly one adapter
//  3. The adapter builds the request body (extra params merged for text)
//  4. The adapter normalizes the raw response body into one uniform output
//
// Adapters are stateless and thread-safe.
package adapters

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Domain separates text and image model families.
type Domain string

const (
	DomainText  Domain = "text"
	DomainImage Domain = "image"
)

// Family is the closed set of request/response schemas this package speaks.
type Family string

const (
	FamilyClaudeMessages    Family = "claude-messages"
	FamilyLlama             Family = "llama-style"
	FamilyTitan             Family = "titan-style"
	FamilyGenericCompletion Family = "generic-completion"

	FamilyStabilityDiffusion Family = "stability-diffusion"
	FamilyAmazonCanvas       Family = "amazon-canvas"
	FamilyGenericImage       Family = "generic-image"
)

// Domain reports which domain the family belongs to.
func (f Family) Domain() Domain {
	switch f {
	case FamilyStabilityDiffusion, FamilyAmazonCanvas, FamilyGenericImage:
		return DomainImage
	default:
		return DomainText
	}
}

// String returns the family name.
func (f Family) String() string { return string(f) }

// Request defaults shared by all families.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
	DefaultImageSize   = 1024

	// AnthropicBedrockVersion is the anthropic_version Bedrock expects in the body.
	AnthropicBedrockVersion = "bedrock-2023-05-31"

	// NovaNegativePrompt is sent as negativeText to Nova Canvas models.
	NovaNegativePrompt = "blurry, bad quality, distorted"

	// Finish reasons after normalization. Anything else is passed through.
	FinishStop   = "stop"
	FinishLength = "length"

	textIDPrefix  = "bedrock_"
	imageIDPrefix = "bedrock_img_"
)

// BuildInput carries everything a family builder needs.
// Prompt and SystemInstruction are already shaped by the caller.
type BuildInput struct {
	ModelID           string
	Prompt            string
	SystemInstruction string
	ExtraParams       []byte // raw JSON object, shallow override (text only)
	Width             int
	Height            int
}

// TextOutput is the normalized result of a text generation call.
type TextOutput struct {
	ID               string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// ImageOutput carries the base64 image payload extracted from a response.
type ImageOutput struct {
	ID     string
	Base64 string
}

// Adapter is the common part of text and image adapters.
type Adapter interface {
	// Family returns the schema family this adapter implements.
	Family() Family

	// Build produces the exact request body for this family.
	Build(in BuildInput) ([]byte, error)
}

// TextAdapter builds and normalizes text generation payloads.
type TextAdapter interface {
	Adapter

	// Normalize extracts content, finish reason and usage from a response body.
	// The body must already be a JSON object.
	Normalize(body []byte) (TextOutput, error)
}

// ImageAdapter builds image payloads and extracts image data from responses.
type ImageAdapter interface {
	Adapter

	// Extract returns the base64 image data, or an error wrapping ErrNoImageData.
	Extract(body []byte) (ImageOutput, error)
}

// BaseAdapter provides common functionality for all adapters.
type BaseAdapter struct {
	family Family
}

// Family returns the adapter family.
func (a *BaseAdapter) Family() Family {
	return a.family
}

// =============================================================================
// HELPERS
// =============================================================================

// dimension returns v when positive, DefaultImageSize otherwise.
func dimension(v int) int {
	if v > 0 {
		return v
	}
	return DefaultImageSize
}

// present reports whether a gjson result exists and is not null.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// nonEmpty reports whether a result carries a non-empty value.
func nonEmpty(r gjson.Result) bool {
	if !present(r) {
		return false
	}
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.JSON:
		raw := strings.TrimSpace(r.Raw)
		return raw != "[]" && raw != "{}"
	}
	return true
}

// textValue returns strings as-is and any other JSON value as its raw text.
func textValue(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

// firstPresent returns the first path that resolves to a present value.
func firstPresent(body []byte, paths ...string) (gjson.Result, bool) {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); present(r) {
			return r, true
		}
	}
	return gjson.Result{}, false
}

// responseID returns the response "id" field or a generated opaque id.
func responseID(body []byte, prefix string) string {
	if r := gjson.GetBytes(body, "id"); present(r) {
		if s := textValue(r); s != "" {
			return s
		}
	}
	return prefix + uuid.NewString()
}

// requireObject rejects bodies that are not a JSON object.
func requireObject(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	if !gjson.ParseBytes(body).IsObject() {
		return fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)
	}
	return nil
}
