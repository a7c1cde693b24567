package adapters

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Image adapters never apply extra params: only text payloads are overridable.

// =============================================================================
// STABILITY DIFFUSION
// =============================================================================

// StabilityAdapter handles stability.* models.
//
// Request:  {"text_prompts": [{"text", "weight"}], "cfg_scale", "steps", "width", "height"}
// Response: {"artifacts": [{"base64"}]}
type StabilityAdapter struct {
	BaseAdapter
}

// NewStabilityAdapter creates a new Stability Diffusion adapter.
func NewStabilityAdapter() *StabilityAdapter {
	return &StabilityAdapter{BaseAdapter: BaseAdapter{family: FamilyStabilityDiffusion}}
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CfgScale    float64           `json:"cfg_scale"`
	Steps       int               `json:"steps"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Build creates the Stability text-to-image body.
func (a *StabilityAdapter) Build(in BuildInput) ([]byte, error) {
	body, err := marshal(&stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: in.Prompt, Weight: 1.0}},
		CfgScale:    7.0,
		Steps:       30,
		Width:       dimension(in.Width),
		Height:      dimension(in.Height),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.family, err)
	}
	return body, nil
}

// Extract returns artifacts[0].base64.
func (a *StabilityAdapter) Extract(body []byte) (ImageOutput, error) {
	if err := requireObject(body); err != nil {
		return ImageOutput{}, err
	}
	if r := gjson.GetBytes(body, "artifacts.0.base64"); nonEmpty(r) {
		return ImageOutput{ID: responseID(body, imageIDPrefix), Base64: textValue(r)}, nil
	}
	return ImageOutput{}, &ExtractionError{Family: a.family}
}

// =============================================================================
// AMAZON CANVAS (Titan Image / Nova Canvas)
// =============================================================================

// CanvasAdapter handles amazon.* image models and anything containing "nova".
//
// Request:  {"taskType": "TEXT_IMAGE", "textToImageParams": {...}, "imageGenerationConfig": {...}}
// Response: {"images": ["<base64>"]} (Nova Canvas variants also seen: "image", "output.images")
type CanvasAdapter struct {
	BaseAdapter
}

// NewCanvasAdapter creates a new Amazon canvas adapter.
func NewCanvasAdapter() *CanvasAdapter {
	return &CanvasAdapter{BaseAdapter: BaseAdapter{family: FamilyAmazonCanvas}}
}

type canvasRequest struct {
	TaskType              string             `json:"taskType"`
	TextToImageParams     canvasTextParams   `json:"textToImageParams"`
	ImageGenerationConfig canvasGenerationCf `json:"imageGenerationConfig"`
}

type canvasTextParams struct {
	Text         string `json:"text"`
	NegativeText string `json:"negativeText"`
}

type canvasGenerationCf struct {
	NumberOfImages int     `json:"numberOfImages"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	CfgScale       float64 `json:"cfgScale"`
}

var canvasImagePaths = []string{"images.0", "image", "output.images.0"}

// Build creates the TEXT_IMAGE body. Nova models get a default negative prompt.
func (a *CanvasAdapter) Build(in BuildInput) ([]byte, error) {
	negative := ""
	if strings.Contains(in.ModelID, "nova") {
		negative = NovaNegativePrompt
	}
	body, err := marshal(&canvasRequest{
		TaskType: "TEXT_IMAGE",
		TextToImageParams: canvasTextParams{
			Text:         in.Prompt,
			NegativeText: negative,
		},
		ImageGenerationConfig: canvasGenerationCf{
			NumberOfImages: 1,
			Height:         dimension(in.Height),
			Width:          dimension(in.Width),
			CfgScale:       8.0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.family, err)
	}
	return body, nil
}

// Extract tries images[0], image, output.images[0]. Failures carry a bounded
// dump of what was received.
func (a *CanvasAdapter) Extract(body []byte) (ImageOutput, error) {
	if err := requireObject(body); err != nil {
		return ImageOutput{}, err
	}
	for _, p := range canvasImagePaths {
		if r := gjson.GetBytes(body, p); nonEmpty(r) {
			return ImageOutput{ID: responseID(body, imageIDPrefix), Base64: textValue(r)}, nil
		}
	}
	return ImageOutput{}, &ExtractionError{Family: a.family, Received: debugDump(body)}
}

// =============================================================================
// GENERIC IMAGE
// =============================================================================

// GenericImageAdapter is the fallback for unrecognised image models.
type GenericImageAdapter struct {
	BaseAdapter
}

// NewGenericImageAdapter creates the fallback image adapter.
func NewGenericImageAdapter() *GenericImageAdapter {
	return &GenericImageAdapter{BaseAdapter: BaseAdapter{family: FamilyGenericImage}}
}

type genericImageRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var genericImagePaths = []string{"image", "images.0", "data.0.b64_json", "result"}

// Build creates {"prompt", "width", "height"}.
func (a *GenericImageAdapter) Build(in BuildInput) ([]byte, error) {
	body, err := marshal(&genericImageRequest{
		Prompt: in.Prompt,
		Width:  dimension(in.Width),
		Height: dimension(in.Height),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.family, err)
	}
	return body, nil
}

// Extract tries image, images[0], data[0].b64_json, result.
func (a *GenericImageAdapter) Extract(body []byte) (ImageOutput, error) {
	if err := requireObject(body); err != nil {
		return ImageOutput{}, err
	}
	for _, p := range genericImagePaths {
		if r := gjson.GetBytes(body, p); nonEmpty(r) {
			return ImageOutput{ID: responseID(body, imageIDPrefix), Base64: textValue(r)}, nil
		}
	}
	return ImageOutput{}, &ExtractionError{Family: a.family}
}

var (
	_ ImageAdapter = (*StabilityAdapter)(nil)
	_ ImageAdapter = (*CanvasAdapter)(nil)
	_ ImageAdapter = (*GenericImageAdapter)(nil)
)
