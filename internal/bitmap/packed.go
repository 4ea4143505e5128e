// This file implements methods to pack bitmap pixel data into the bit
// structure accepted by Phomemo printers: 8 pixels per byte, most
// significant bit first, 1 = ink.

package bitmap

import (
	"errors"
	"fmt"
)

// ErrInvalidRasterWidth is returned when a bitmap's width isn't a whole
// number of bytes. The packed wire format has no way to express a partial
// trailing byte, so this always indicates a quantizer misconfiguration.
var ErrInvalidRasterWidth = errors.New("bitmap width must be a multiple of 8")

const bitsPerWord = 8

// a bitmap packed in memory
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

// Stride is the number of bytes representing one row of pixels.
func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	index := (y * b.stride) + (x / bitsPerWord)
	return (b.data[index] >> (bitsPerWord - 1 - x%bitsPerWord)) & 1
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Band takes a vertical slice of the packed bitmap, with the specified
// height and the start row of the slice from the source bitmap.
func (b *PackedBitmap) Band(start int, height int) *PackedBitmap {
	return &PackedBitmap{
		data:   b.data[b.stride*start : b.stride*(start+height)],
		width:  b.width,
		height: height,
		stride: b.stride,
	}
}

// Pack takes data from any Bitmap implementation and packs it into the
// Phomemo bitmap structure. Packing is pure: the same input always yields
// the same bytes.
func Pack(b Bitmap) (*PackedBitmap, error) {
	width, height := b.Width(), b.Height()
	if width%bitsPerWord != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRasterWidth, width)
	}
	stride := width / bitsPerWord
	data := make([]byte, stride*height)

	var p byte = 0
	for y := range height {
		for x := range width {
			p = (p << 1) | (b.GetBit(x, y) & 1)

			if x%bitsPerWord == bitsPerWord-1 {
				data[y*stride+(x/bitsPerWord)] = p
				p = 0
			}
		}
	}

	return &PackedBitmap{data, width, height, stride}, nil
}
