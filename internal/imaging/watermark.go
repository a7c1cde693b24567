package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // decoder registration
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // decoder registration
)

// DefaultWatermarkText is stamped on generated images.
const DefaultWatermarkText = "AI generated"

// Watermarker marks an image file in place. The result is always PNG.
type Watermarker interface {
	Watermark(path string) error
}

// NoopWatermarker leaves files untouched.
type NoopWatermarker struct{}

// Watermark implements Watermarker.
func (NoopWatermarker) Watermark(string) error { return nil }

// TextWatermarker draws a text label on a translucent band in the bottom-left corner.
type TextWatermarker struct {
	Text string
}

// NewTextWatermarker creates a watermarker. Empty text uses DefaultWatermarkText.
func NewTextWatermarker(text string) *TextWatermarker {
	if text == "" {
		text = DefaultWatermarkText
	}
	return &TextWatermarker{Text: text}
}

const (
	labelPadding = 4
	labelMargin  = 8
)

// Watermark decodes path (PNG, JPEG or WebP), draws the label and rewrites it as PNG.
func (w *TextWatermarker) Watermark(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, w.Text).Ceil()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	band := image.Rect(
		bounds.Min.X+labelMargin,
		bounds.Max.Y-labelMargin-textHeight-2*labelPadding,
		bounds.Min.X+labelMargin+textWidth+2*labelPadding,
		bounds.Max.Y-labelMargin,
	).Intersect(bounds)
	if !band.Empty() {
		draw.Draw(dst, band, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(band.Min.X + labelPadding),
			Y: fixed.I(band.Max.Y-labelPadding) - metrics.Descent,
		},
	}
	d.DrawString(w.Text)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

var (
	_ Watermarker = NoopWatermarker{}
	_ Watermarker = (*TextWatermarker)(nil)
)
