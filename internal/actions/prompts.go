package actions

import "strings"

// Placeholders sent when the host passes an empty prompt.
const (
	DefaultTextPrompt         = "Please generate text based on this prompt."
	DefaultSummaryText        = "Please provide content to summarize."
	DefaultImagePrompt        = "Please generate an image based on this prompt."
	DefaultSummaryInstruction = "Please summarize the following text concisely while preserving key information."

	summaryPrefix = "Please summarize the following text:\n\n"
)

// shapePrompt returns the prompt and system instruction sent to the model.
func shapePrompt(kind Kind, prompt, instruction string) (string, string) {
	empty := strings.TrimSpace(prompt) == ""

	switch kind {
	case KindSummariseText:
		if empty {
			prompt = DefaultSummaryText
		}
		if strings.TrimSpace(instruction) == "" {
			instruction = DefaultSummaryInstruction
		}
		return summaryPrefix + prompt, instruction
	case KindGenerateImage:
		if empty {
			prompt = DefaultImagePrompt
		}
		return prompt, ""
	default:
		if empty {
			prompt = DefaultTextPrompt
		}
		return prompt, instruction
	}
}
