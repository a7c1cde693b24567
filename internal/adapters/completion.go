package adapters

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// CompletionAdapter handles prompt-style completion models (Llama, Titan and
// anything unrecognised). The three families share one body shape and differ
// only in the key that carries the system instruction:
//
//   - llama-style:        "system"
//   - titan-style:        "systemPrompt"
//   - generic-completion: "system_prompt"
type CompletionAdapter struct {
	BaseAdapter
	instructionKey string
}

// NewLlamaAdapter creates the adapter for meta.llama models.
func NewLlamaAdapter() *CompletionAdapter {
	return &CompletionAdapter{BaseAdapter: BaseAdapter{family: FamilyLlama}, instructionKey: "system"}
}

// NewTitanAdapter creates the adapter for amazon.titan text models.
func NewTitanAdapter() *CompletionAdapter {
	return &CompletionAdapter{BaseAdapter: BaseAdapter{family: FamilyTitan}, instructionKey: "systemPrompt"}
}

// NewGenericCompletionAdapter creates the fallback text adapter.
func NewGenericCompletionAdapter() *CompletionAdapter {
	return &CompletionAdapter{BaseAdapter: BaseAdapter{family: FamilyGenericCompletion}, instructionKey: "system_prompt"}
}

// InstructionKey returns the body key used for the system instruction.
func (a *CompletionAdapter) InstructionKey() string {
	return a.instructionKey
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Content is looked up in this order; the first present field wins.
var completionContentPaths = []string{
	"generation",
	"output",
	"completions.0.data.text",
	"text",
	"completion",
}

var (
	stopReasons   = map[string]bool{"end_turn": true, "stop_sequence": true, "complete": true, "finished": true}
	lengthReasons = map[string]bool{"max_tokens": true, "token_limit": true, "length_exceeded": true}
)

// Build creates the completion body and applies extra params last.
func (a *CompletionAdapter) Build(in BuildInput) ([]byte, error) {
	body, err := marshal(&completionRequest{
		Prompt:      in.Prompt,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.family, err)
	}
	if in.SystemInstruction != "" {
		body, err = sjson.SetBytes(body, a.instructionKey, in.SystemInstruction)
		if err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", a.instructionKey, err)
		}
	}
	return ApplyExtraParams(body, in.ExtraParams)
}

// Normalize is best effort: a JSON object always yields a result, falling back
// to the whole serialized response when no content field is recognised.
func (a *CompletionAdapter) Normalize(body []byte) (TextOutput, error) {
	if err := requireObject(body); err != nil {
		return TextOutput{}, err
	}

	out := TextOutput{ID: responseID(body, textIDPrefix)}
	if r, ok := firstPresent(body, completionContentPaths...); ok {
		out.Content = textValue(r)
	} else {
		out.Content = compactJSON(body)
	}

	reason := FinishStop
	if r, ok := firstPresent(body, "finish_reason", "stopReason"); ok {
		reason = textValue(r)
	}
	out.FinishReason = mapCompletionFinishReason(reason)

	if r, ok := firstPresent(body, "usage.prompt_tokens", "usage.inputTokens"); ok {
		out.PromptTokens = int(r.Int())
	}
	if r, ok := firstPresent(body, "usage.completion_tokens", "usage.outputTokens"); ok {
		out.CompletionTokens = int(r.Int())
	}
	return out, nil
}

func mapCompletionFinishReason(reason string) string {
	switch {
	case stopReasons[reason]:
		return FinishStop
	case lengthReasons[reason]:
		return FinishLength
	default:
		return reason
	}
}

var _ TextAdapter = (*CompletionAdapter)(nil)

