// This package turns source material (an image file or a text caption) into
// the two-colour 96x320 raster the D30 head expects. The processing order is
// fixed: fit onto the label canvas, auto-level, dither, extend to the head
// canvas, rotate 270 degrees. The rotation is required because the printer's
// raster origin is rotated relative to the label's visual orientation.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

var (
	// ErrImageLoad means the source image couldn't be read or decoded.
	ErrImageLoad = errors.New("couldn't load image")
	// ErrInvalidConfiguration means the label geometry makes no sense.
	ErrInvalidConfiguration = errors.New("invalid label configuration")
)

// The head canvas: every label is extended to these dimensions before the
// 270 degree rotation, giving a final raster 96 pixels wide.
const (
	headWidth  = 320
	headHeight = 96
)

// Preset describes the usable area of a physical label.
type Preset struct {
	Name          string
	Width, Height int
	// OffsetX shifts the label content horizontally when extending to the
	// head canvas. The fruit labels sit off-centre on the backing paper.
	OffsetX int
}

var (
	Standard = Preset{Name: "standard", Width: 288, Height: 88}
	Fruit    = Preset{Name: "fruit", Width: 240, Height: 80, OffsetX: -60}
)

func PresetByName(name string) (Preset, error) {
	switch name {
	case Standard.Name:
		return Standard, nil
	case Fruit.Name:
		return Fruit, nil
	default:
		return Preset{}, fmt.Errorf("%w: unknown label preset %q", ErrInvalidConfiguration, name)
	}
}

// LoadImage decodes a PNG or JPEG file from disk.
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}

	return img, nil
}

// Quantize reduces a source image to a two-colour paletted raster in the
// printer's orientation. Portrait sources are rotated to landscape first, so
// they use the label the long way round.
func Quantize(src image.Image, p Preset) (*image.Paletted, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidConfiguration, p.Width, p.Height)
	}

	if src.Bounds().Dx() < src.Bounds().Dy() {
		src = rotate90(src)
	}

	canvas := fitToCanvas(src, p.Width, p.Height)

	// expand to full contrast before quantizing; flat thresholding on a
	// narrow histogram produces unusable labels
	gray := autoLevel(canvas)

	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	dithered := ditherer.DitherPaletted(gray)

	return rotate270(extend(dithered, p.OffsetX)), nil
}

// fitToCanvas scales the source to fit the canvas preserving aspect ratio
// and composites it centred on white.
func fitToCanvas(src image.Image, width, height int) *image.RGBA {
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()

	newW, newH := width, srcH*width/srcW
	if newH > height {
		newW, newH = srcW*height/srcH, height
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	target := image.Rect((width-newW)/2, (height-newH)/2, (width-newW)/2+newW, (height-newH)/2+newH)
	draw.CatmullRom.Scale(canvas, target, src, src.Bounds(), draw.Over, nil)

	return canvas
}

// autoLevel converts to grayscale and linearly stretches the histogram to
// the full range.
func autoLevel(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)

	lo, hi := uint8(0xFF), uint8(0x00)
	for _, v := range gray.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if hi > lo {
		scale := float64(0xFF) / float64(hi-lo)
		for i, v := range gray.Pix {
			gray.Pix[i] = uint8(float64(v-lo) * scale)
		}
	}

	return gray
}

// extend places the label canvas on a white head canvas, centred plus the
// preset's horizontal offset.
func extend(src *image.Paletted, offsetX int) *image.Paletted {
	dst := image.NewPaletted(image.Rect(0, 0, headWidth, headHeight), src.Palette)

	white := uint8(src.Palette.Index(color.White))
	for i := range dst.Pix {
		dst.Pix[i] = white
	}

	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()
	originX := (headWidth-srcW)/2 + offsetX
	originY := (headHeight - srcH) / 2

	for y := range srcH {
		for x := range srcW {
			dx, dy := originX+x, originY+y
			if dx < 0 || dx >= headWidth || dy < 0 || dy >= headHeight {
				continue
			}
			dst.SetColorIndex(dx, dy, src.ColorIndexAt(x, y))
		}
	}

	return dst
}

// rotate90 rotates clockwise by 90 degrees, turning a portrait source into
// a landscape one.
func rotate90(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := range w {
		for x := range h {
			dst.Set(x, y, src.At(bounds.Min.X+y, bounds.Min.Y+h-1-x))
		}
	}
	return dst
}

// rotate270 rotates clockwise by 270 degrees into the printer's raster
// orientation.
func rotate270(src *image.Paletted) *image.Paletted {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	dst := image.NewPaletted(image.Rect(0, 0, h, w), src.Palette)
	for y := range w {
		for x := range h {
			dst.SetColorIndex(x, y, src.ColorIndexAt(w-1-y, x))
		}
	}
	return dst
}
