// This package orchestrates one print job against a connected printer:
// handshake frames first, then raster frames in band order, all strictly
// sequential. The firmware processes bytes in receipt order and has no
// per-chunk acknowledgment, so there is nothing to gain from concurrency
// and everything to lose.
package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"d30print/internal/bitmap"
	"d30print/internal/protocol"
	"d30print/internal/transport"
)

type State int

const (
	Idle State = iota
	Connected
	Initializing
	Streaming
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Initializing:
		return "initializing"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session drives print jobs over an established connection. A session
// accepts one job at a time; the BLE characteristic is a single shared
// resource, so concurrent callers are serialised on the session lock.
type Session struct {
	chunker *transport.Chunker
	framer  *protocol.Framer

	mu    sync.Mutex
	state State
}

// NewSession wraps an established connection. The link is the caller's
// responsibility; the session starts in the Connected state.
func NewSession(chunker *transport.Chunker, framer *protocol.Framer) *Session {
	return &Session{
		chunker: chunker,
		framer:  framer,
		state:   Connected,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Print sends one packed bitmap to the printer: handshake, then raster
// bands, top to bottom. Any write failure or cancellation moves the session
// to Failed and drops the remaining work. The printer has no abort opcode,
// so a failed or cancelled job can leave the device mid-raster; the caller
// decides whether to start over.
func (s *Session) Print(ctx context.Context, b *bitmap.PackedBitmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected && s.state != Complete {
		return fmt.Errorf("printer session is %s, not ready to print", s.state)
	}

	// frame the whole job up front so a bad bitmap never reaches the wire
	rasterFrames, err := s.framer.RasterFrames(b)
	if err != nil {
		s.state = Failed
		return err
	}

	s.state = Initializing
	slog.Info("Sending printer handshake")
	for _, f := range protocol.InitFrames() {
		if err := s.chunker.WriteFrame(ctx, f); err != nil {
			s.state = Failed
			return err
		}
	}

	s.state = Streaming
	slog.Info("Streaming raster data",
		"bands", len(rasterFrames),
		"rows", b.Height(),
	)
	for _, f := range rasterFrames {
		if err := s.chunker.WriteFrame(ctx, f); err != nil {
			s.state = Failed
			return err
		}
	}

	s.state = Complete
	slog.Info("Print job complete")
	return nil
}
