// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// It also defines two implementations: PixelBitmap, which stores each pixel
// in a byte in a 2D array format, and ImageBitmap, which adapts a two-colour
// paletted image. Lastly it defines the PackedBitmap structure, which is the
// format the printer consumes over the wire.
package bitmap

import (
	"fmt"
	"image"
	"image/color"
)

type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

func NewPixelBitmap(pixels [][]byte) *PixelBitmap {
	height := len(pixels)
	width := 0
	if height > 0 {
		width = len(pixels[0])
	}
	return &PixelBitmap{pixels, width, height}
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}

type ImageBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the bit value of the palette colour at index i.
	// A high bit in a bitmap sent to the device will be printed as ink, so
	// if the first colour in the palette is black then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *ImageBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	return b.colorMap[b.image.ColorIndexAt(x, y)]
}

func (b *ImageBitmap) String() string {
	return fmt.Sprintf("ImageBitmap(%d,%d)", b.Width(), b.Height())
}

// FromPaletted wraps a two-colour paletted image, working out which of the
// two palette entries is ink and which is background.
func FromPaletted(i *image.Paletted) (*ImageBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("image passed to FromPaletted must have only 2 colours in palette")
	}

	var colorMap [2]byte

	// Determine which of the two colours in the palette is closest to white.
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &ImageBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}
