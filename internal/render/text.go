package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	minFontSize = 6
	// textMargin keeps glyphs off the label edge, which the head tends to
	// print unreliably.
	textMargin = 4
)

// RenderText rasterizes a caption onto the label canvas, centred, at the
// largest font size that fits. Newlines in the text start new lines on the
// label. fontPath selects a TTF file; empty means the bundled Go Regular.
func RenderText(text string, fontPath string, p Preset) (image.Image, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidConfiguration, p.Width, p.Height)
	}

	fontData := goregular.TTF
	if fontPath != "" {
		var err error
		if fontData, err = os.ReadFile(fontPath); err != nil {
			return nil, fmt.Errorf("couldn't read font file: %w", err)
		}
	}

	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse font: %w", err)
	}

	lines := strings.Split(text, "\n")
	maxWidth := p.Width - 2*textMargin
	maxHeight := p.Height - 2*textMargin

	face, err := fitFace(parsed, lines, maxWidth, maxHeight)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	canvas := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	top := (p.Height - lineHeight*len(lines)) / 2

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		d.Dot = fixed.Point26_6{
			X: fixed.I((p.Width - lineWidth) / 2),
			Y: fixed.I(top+i*lineHeight) + metrics.Ascent,
		}
		d.DrawString(line)
	}

	return canvas, nil
}

// fitFace finds the largest face size at which every line fits the width
// and the block of lines fits the height.
func fitFace(parsed *sfnt.Font, lines []string, maxWidth, maxHeight int) (font.Face, error) {
	for size := maxHeight; size >= minFontSize; size-- {
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't create font face: %w", err)
		}

		if textFits(face, lines, maxWidth, maxHeight) {
			return face, nil
		}
		face.Close()
	}

	return nil, fmt.Errorf("text doesn't fit the label at any usable size")
}

func textFits(face font.Face, lines []string, maxWidth, maxHeight int) bool {
	if face.Metrics().Height.Ceil()*len(lines) > maxHeight {
		return false
	}
	for _, line := range lines {
		if font.MeasureString(face, line).Ceil() > maxWidth {
			return false
		}
	}
	return true
}
