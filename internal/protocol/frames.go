package protocol

import (
	"fmt"

	"d30print/internal/bitmap"
)

// BandHeight is the number of raster rows carried by one raster frame. It is
// coupled to the row count encoded in the raster header the D30 firmware
// expects (0x0140 = 320); the two values must change together.
const BandHeight = 320

// MaxStride is the printable width of the D30 head in bytes: 96 pixels.
const MaxStride = 12

type FrameKind int

const (
	// InitFrame carries a fixed handshake command and requires the longer
	// inter-write settle delay.
	InitFrame FrameKind = iota
	// RasterFrame carries a raster header followed by packed band bytes.
	RasterFrame
)

// Frame is a single protocol unit sent to the printer: one contiguous byte
// sequence whose chunks must arrive in order with nothing interleaved.
type Frame struct {
	Name string
	Kind FrameKind
	Data []byte
}

// InitFrames returns the fixed initialization handshake, sent once per print
// job before any raster data. Each frame is an independent write. The
// sequence and its exact bytes are firmware-specific; emit them in this
// order, always.
func InitFrames() []Frame {
	return []Frame{
		{Name: "handshake", Kind: InitFrame, Data: us11(0x38)},
		{Name: "prepare", Kind: InitFrame, Data: concat(us11(0x12), us11(0x13))},
		{Name: "query-serial", Kind: InitFrame, Data: queryDeviceSerial()},
		{Name: "query-paper", Kind: InitFrame, Data: queryPaperStatus()},
		{Name: "query-state", Kind: InitFrame, Data: us11(0x19)},
		{Name: "query-firmware", Kind: InitFrame, Data: queryFirmwareVersion()},
		{Name: "set-intensity", Kind: InitFrame, Data: concat(us11(0x0a), setPrintIntensity(DefaultIntensity))},
	}
}

// Framer wraps packed raster bands into printer frames.
type Framer struct {
	// BandHeight bounds the rows carried per frame. Zero means BandHeight.
	BandHeight int
}

func (f *Framer) bandHeight() int {
	if f.BandHeight > 0 {
		return f.BandHeight
	}
	return BandHeight
}

// RasterFrames splits the packed bitmap into bands of at most BandHeight
// rows (the last band may be shorter) and wraps each band in the raster
// header. Frames are returned top to bottom; the printer processes bytes
// strictly in receipt order.
func (f *Framer) RasterFrames(b *bitmap.PackedBitmap) ([]Frame, error) {
	if b.Stride() > MaxStride {
		return nil, fmt.Errorf("bitmap too wide for printer: %s", b)
	}
	strideU8 := byte(b.Stride())

	var frames []Frame
	for bandStart := 0; bandStart < b.Height(); bandStart += f.bandHeight() {
		bandEnd := bandStart + f.bandHeight()

		if bandEnd >= b.Height() {
			bandEnd = b.Height()
		}

		band := b.Band(bandStart, bandEnd-bandStart)
		bandRowsU16 := uint16(band.Height())

		frames = append(frames, Frame{
			Name: fmt.Sprintf("raster[%d:%d]", bandStart, bandEnd),
			Kind: RasterFrame,
			Data: concat(
				enterRasterMode(),
				initPrinter(),
				printBitmapHeader(strideU8, bandRowsU16),
				band.Data(),
			),
		})
	}

	return frames, nil
}
