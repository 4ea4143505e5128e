package printer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d30print/internal/bitmap"
	"d30print/internal/protocol"
	"d30print/internal/transport"
)

type fakeWriter struct {
	writes [][]byte
	failAt int // fail on the nth write (1-based), 0 means never
}

func (w *fakeWriter) Write(data []byte) error {
	if w.failAt > 0 && len(w.writes)+1 >= w.failAt {
		return errors.New("link dropped")
	}
	w.writes = append(w.writes, append([]byte(nil), data...))
	return nil
}

func newTestSession(w *fakeWriter) *Session {
	chunker := &transport.Chunker{
		Writer: w,
		Sleep:  func(time.Duration) {},
	}
	return NewSession(chunker, &protocol.Framer{})
}

func blackLabel(t *testing.T, height int) *bitmap.PackedBitmap {
	t.Helper()
	pixels := make([][]byte, height)
	for y := range height {
		row := make([]byte, 96)
		for x := range row {
			row[x] = 1
		}
		pixels[y] = row
	}
	packed, err := bitmap.Pack(bitmap.NewPixelBitmap(pixels))
	require.NoError(t, err)
	return packed
}

func TestPrintSendsHandshakeThenRaster(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSession(w)
	require.Equal(t, Connected, s.State())

	require.NoError(t, s.Print(context.Background(), blackLabel(t, 16)))
	assert.Equal(t, Complete, s.State())

	// seven handshake writes, then a single raster frame in one write
	require.Len(t, w.writes, 8)
	assert.Equal(t, "1f1138", hex.EncodeToString(w.writes[0]))
	assert.Equal(t, "1f110a1f110202", hex.EncodeToString(w.writes[6]))
	assert.True(t, bytes.HasPrefix(w.writes[7], []byte{0x1f, 0x11, 0x24, 0x00, 0x1b, 0x40}))
}

func TestPrintFailureDuringHandshake(t *testing.T) {
	w := &fakeWriter{failAt: 3}
	s := newTestSession(w)

	err := s.Print(context.Background(), blackLabel(t, 16))
	require.ErrorIs(t, err, transport.ErrTransport)
	assert.Equal(t, Failed, s.State())

	// nothing after the failed write reached the wire
	assert.Len(t, w.writes, 2)
}

func TestPrintFailureMidRaster(t *testing.T) {
	w := &fakeWriter{failAt: 8}
	s := newTestSession(w)

	err := s.Print(context.Background(), blackLabel(t, 320))
	require.ErrorIs(t, err, transport.ErrTransport)
	assert.Equal(t, Failed, s.State())
}

func TestPrintRejectsBadBitmapBeforeWriting(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSession(w)

	wide := make([][]byte, 4)
	for y := range wide {
		wide[y] = make([]byte, 104)
	}
	packed, err := bitmap.Pack(bitmap.NewPixelBitmap(wide))
	require.NoError(t, err)

	require.Error(t, s.Print(context.Background(), packed))
	assert.Equal(t, Failed, s.State())
	assert.Empty(t, w.writes, "no bytes should reach the wire for an unprintable bitmap")
}

func TestPrintCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{}
	s := newTestSession(w)

	err := s.Print(ctx, blackLabel(t, 16))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, s.State())
	assert.Empty(t, w.writes)
}

func TestSessionRefusesSecondJobAfterFailure(t *testing.T) {
	w := &fakeWriter{failAt: 1}
	s := newTestSession(w)

	require.Error(t, s.Print(context.Background(), blackLabel(t, 16)))
	require.Equal(t, Failed, s.State())

	err := s.Print(context.Background(), blackLabel(t, 16))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestSessionAllowsReprintAfterComplete(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSession(w)

	require.NoError(t, s.Print(context.Background(), blackLabel(t, 16)))
	require.NoError(t, s.Print(context.Background(), blackLabel(t, 16)))
	assert.Len(t, w.writes, 16)
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		Idle:         "idle",
		Connected:    "connected",
		Initializing: "initializing",
		Streaming:    "streaming",
		Complete:     "complete",
		Failed:       "failed",
	}
	for state, want := range states {
		assert.Equal(t, want, state.String())
	}
}
