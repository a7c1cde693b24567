// Package actions runs provider actions end to end.
//
// DESIGN: One Processor serves every action kind. A single invocation moves
// through building -> calling -> normalizing and ends succeeded or failed.
// There is exactly one Bedrock round trip per invocation and no retry.
//
// FLOW:
//  1. Resolve the configuration snapshot (once)
//  2. Pseudonymise the user id with the site identifier
//  3. Check the user then the global rate limit
//  4. Classify the model, shape the prompt, build the body
//  5. InvokeModel (application/json both ways)
//  6. Normalize text, or extract + post-process images
//  7. Record usage, metrics and telemetry
//
// Every failure converges on Result{Success:false, ErrorCode, ErrorMessage}.
//
// FILES:
//   - types.go:     Kind, Request, Result, Preview
//   - errors.go:    ErrorKind taxonomy and ResultFromError
//   - prompts.go:   Prompt shaping per action kind
//   - processor.go: The orchestrator
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/compresr/bedrock-provider/internal/adapters"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/drafts"
)

// Kind is the closed set of actions this provider serves.
type Kind string

const (
	KindGenerateText  Kind = config.ActionGenerateText
	KindSummariseText Kind = config.ActionSummariseText
	KindGenerateImage Kind = config.ActionGenerateImage
)

// ParseKind validates an action name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGenerateText, KindSummariseText, KindGenerateImage:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", config.ErrUnknownAction, s)
}

// Domain reports whether the action produces text or images.
func (k Kind) Domain() adapters.Domain {
	if k == KindGenerateImage {
		return adapters.DomainImage
	}
	return adapters.DomainText
}

// State is the stage an invocation reached.
type State string

const (
	StateBuilding    State = "building"
	StateCalling     State = "calling"
	StateNormalizing State = "normalizing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Request is one action invocation. Model, SystemInstruction and ExtraParams
// are optional per-request overrides.
type Request struct {
	Kind              Kind   `json:"-"`
	InstanceID        string `json:"instance_id"`
	UserID            string `json:"user_id"`
	Prompt            string `json:"prompt"`
	Model             string `json:"model,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	ExtraParams       string `json:"extra_params,omitempty"`
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	Lang              string `json:"lang,omitempty"`
}

func (r Request) overrides() config.Overrides {
	return config.Overrides{
		Model:             r.Model,
		SystemInstruction: r.SystemInstruction,
		ExtraParams:       r.ExtraParams,
	}
}

// Result is the only shape an invocation ever returns.
type Result struct {
	Success          bool              `json:"success"`
	ID               string            `json:"id,omitempty"`
	GeneratedContent string            `json:"generated_content,omitempty"`
	DraftFile        *drafts.DraftFile `json:"draft_file,omitempty"`
	FinishReason     string            `json:"finish_reason,omitempty"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	ErrorCode        int               `json:"error_code,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}

// Preview is the request an invocation would send, without sending it.
type Preview struct {
	Kind                  Kind            `json:"kind"`
	Model                 string          `json:"model"`
	Family                adapters.Family `json:"family"`
	Region                string          `json:"region"`
	Body                  json.RawMessage `json:"body"`
	EstimatedPromptTokens int             `json:"estimated_prompt_tokens"`
}
