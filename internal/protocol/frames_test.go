package protocol

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d30print/internal/bitmap"
)

func solidBitmap(t *testing.T, width, height int) *bitmap.PackedBitmap {
	t.Helper()
	pixels := make([][]byte, height)
	for y := range height {
		row := make([]byte, width)
		for x := range width {
			row[x] = 1
		}
		pixels[y] = row
	}
	packed, err := bitmap.Pack(bitmap.NewPixelBitmap(pixels))
	require.NoError(t, err)
	return packed
}

func TestInitFramesMatchCapturedHandshake(t *testing.T) {
	// The handshake sniffed from the vendor app, one hex string per write.
	wanted := []string{
		"1f1138",
		"1f11121f1113",
		"1f1109",
		"1f1111",
		"1f1119",
		"1f1107",
		"1f110a1f110202",
	}

	frames := InitFrames()
	require.Len(t, frames, len(wanted))
	for i, want := range wanted {
		assert.Equal(t, want, hex.EncodeToString(frames[i].Data), "init frame %d (%s)", i, frames[i].Name)
		assert.Equal(t, InitFrame, frames[i].Kind)
	}
}

func TestRasterHeaderMatchesCapturedTraffic(t *testing.T) {
	// A full 96x320 label should produce exactly the raster preamble the
	// vendor app sends.
	f := &Framer{}
	frames, err := f.RasterFrames(solidBitmap(t, 96, 320))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	const header = "1f1124001b401d7630000c004001"
	got := hex.EncodeToString(frames[0].Data[:len(header)/2])
	assert.Equal(t, header, got)
}

func TestRasterFrameSolidBlack(t *testing.T) {
	f := &Framer{}
	frames, err := f.RasterFrames(solidBitmap(t, 96, 16))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	frame := frames[0]
	assert.Equal(t, RasterFrame, frame.Kind)

	// header + 16 rows of 12 bytes, every raster byte inked
	payload := frame.Data[len(frame.Data)-16*12:]
	for i, b := range payload {
		require.Equal(t, byte(0xFF), b, "raster byte %d", i)
	}

	// header encodes 12-byte stride and 16 rows
	headerLen := len(frame.Data) - 16*12
	assert.Equal(t, []byte{0x0c, 0x00, 0x10, 0x00}, frame.Data[headerLen-4:headerLen])

	// the whole frame fits in a single 512-byte transport write
	assert.LessOrEqual(t, len(frame.Data), 512)
}

func TestRasterFramesBandPartitioning(t *testing.T) {
	f := &Framer{BandHeight: 8}
	frames, err := f.RasterFrames(solidBitmap(t, 16, 20))
	require.NoError(t, err)

	// ceil(20/8) bands: 8, 8 and a short final 4
	require.Len(t, frames, 3)

	stride := 2
	headerLen := len(frames[0].Data) - 8*stride
	for i, rows := range []int{8, 8, 4} {
		assert.Equal(t, headerLen+rows*stride, len(frames[i].Data), "band %d", i)
		assert.Equal(t, byte(rows), frames[i].Data[headerLen-2], "band %d row count", i)
	}
}

func TestRasterFramesRejectsWideBitmaps(t *testing.T) {
	f := &Framer{}
	_, err := f.RasterFrames(solidBitmap(t, 104, 4))
	assert.Error(t, err)
}

func TestRasterFramesDeterministic(t *testing.T) {
	f := &Framer{}
	b := solidBitmap(t, 96, 40)

	first, err := f.RasterFrames(b)
	require.NoError(t, err)
	second, err := f.RasterFrames(b)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Data, second[i].Data)
	}
}
