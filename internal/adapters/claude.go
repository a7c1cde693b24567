package adapters

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ClaudeAdapter handles Anthropic Claude models on Bedrock (Messages API).
//
// Request:  {"anthropic_version", "max_tokens", "temperature", "messages": [...], "system"?}
// Response: {"id", "content": [{"text"}], "stop_reason", "usage": {"input_tokens", "output_tokens"}}
type ClaudeAdapter struct {
	BaseAdapter
}

// NewClaudeAdapter creates a new Claude Messages adapter.
func NewClaudeAdapter() *ClaudeAdapter {
	return &ClaudeAdapter{BaseAdapter: BaseAdapter{family: FamilyClaudeMessages}}
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
	System           string          `json:"system,omitempty"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Build creates the Messages API body and applies extra params last.
func (a *ClaudeAdapter) Build(in BuildInput) ([]byte, error) {
	body, err := marshal(&claudeRequest{
		AnthropicVersion: AnthropicBedrockVersion,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: []claudeBlock{{Type: "text", Text: in.Prompt}},
		}},
		System: in.SystemInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.family, err)
	}
	return ApplyExtraParams(body, in.ExtraParams)
}

// Normalize extracts the first text block, stop reason and usage.
func (a *ClaudeAdapter) Normalize(body []byte) (TextOutput, error) {
	if err := requireObject(body); err != nil {
		return TextOutput{}, err
	}

	out := TextOutput{ID: responseID(body, textIDPrefix)}
	if r := gjson.GetBytes(body, "content.0.text"); present(r) {
		out.Content = textValue(r)
	}

	reason := FinishStop
	if r := gjson.GetBytes(body, "stop_reason"); present(r) {
		reason = textValue(r)
	}
	out.FinishReason = mapClaudeStopReason(reason)

	out.PromptTokens = int(gjson.GetBytes(body, "usage.input_tokens").Int())
	out.CompletionTokens = int(gjson.GetBytes(body, "usage.output_tokens").Int())
	return out, nil
}

// mapClaudeStopReason maps end_turn and max_tokens; other values pass through.
func mapClaudeStopReason(reason string) string {
	switch reason {
	case "end_turn":
		return FinishStop
	case "max_tokens":
		return FinishLength
	default:
		return reason
	}
}

var _ TextAdapter = (*ClaudeAdapter)(nil)
