package adapters

import "strings"

// Classify maps a Bedrock model identifier to its schema family.
//
// Text models:
//   - "anthropic.claude" anywhere (covers "us.anthropic.claude-...")  -> claude-messages
//   - prefix "meta.llama"                                            -> llama-style
//   - prefix "amazon.titan"                                          -> titan-style
//   - anything else                                                  -> generic-completion
//
// Image models:
//   - prefix "stability"                  -> stability-diffusion
//   - prefix "amazon" or contains "nova"  -> amazon-canvas
//   - anything else                       -> generic-image
//
// Matching is case-sensitive and never fails.
func Classify(modelID string, domain Domain) Family {
	if domain == DomainImage {
		return classifyImage(modelID)
	}
	return classifyText(modelID)
}

func classifyText(modelID string) Family {
	switch {
	case strings.Contains(modelID, "anthropic.claude"):
		return FamilyClaudeMessages
	case strings.HasPrefix(modelID, "meta.llama"):
		return FamilyLlama
	case strings.HasPrefix(modelID, "amazon.titan"):
		return FamilyTitan
	default:
		return FamilyGenericCompletion
	}
}

// Any id containing "nova" lands in amazon-canvas, even from other vendors.
func classifyImage(modelID string) Family {
	switch {
	case strings.HasPrefix(modelID, "stability"):
		return FamilyStabilityDiffusion
	case strings.HasPrefix(modelID, "amazon"), strings.Contains(modelID, "nova"):
		return FamilyAmazonCanvas
	default:
		return FamilyGenericImage
	}
}
