package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"d30print/internal/protocol"
)

// ErrTransport indicates a write failed mid-stream. The remainder of the
// job is aborted; the state of the physical printer is indeterminate.
var ErrTransport = errors.New("transport write failed")

// Writer is the consumed transport capability: write one byte buffer to the
// device, no acknowledgment of content, only of transmission.
type Writer interface {
	Write(data []byte) error
}

const (
	// DefaultMaxChunkSize is a safe write size for BLE links; most devices
	// negotiate an MTU of at least this.
	DefaultMaxChunkSize = 512
	// DefaultInitDelay is the settle time after each handshake write.
	DefaultInitDelay = 50 * time.Millisecond
	// DefaultDataDelay is the settle time between chunks of raster data.
	DefaultDataDelay = 10 * time.Millisecond
)

// Chunker splits protocol frames into writes the transport will accept and
// paces them to accommodate firmware write-processing latency. The delays
// are a floor, not a target: the link may take longer, but the next write is
// never issued sooner.
type Chunker struct {
	Writer       Writer
	MaxChunkSize int
	InitDelay    time.Duration
	DataDelay    time.Duration

	// Sleep stands in for time.Sleep in tests. Nil means time.Sleep.
	Sleep func(d time.Duration)
}

func (c *Chunker) chunkSize() int {
	if c.MaxChunkSize > 0 {
		return c.MaxChunkSize
	}
	return DefaultMaxChunkSize
}

func (c *Chunker) delayFor(f protocol.Frame) time.Duration {
	if f.Kind == protocol.InitFrame {
		if c.InitDelay > 0 {
			return c.InitDelay
		}
		return DefaultInitDelay
	}
	if c.DataDelay > 0 {
		return c.DataDelay
	}
	return DefaultDataDelay
}

func (c *Chunker) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

// WriteFrame streams one frame to the device in order, in windows of at most
// MaxChunkSize bytes. The first write error aborts the rest of the frame;
// there is no retry at this layer. Cancelling the context stops the stream
// before the next write.
func (c *Chunker) WriteFrame(ctx context.Context, f protocol.Frame) error {
	size := c.chunkSize()
	delay := c.delayFor(f)

	for start := 0; start < len(f.Data); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + size
		if end > len(f.Data) {
			end = len(f.Data)
		}

		if err := c.Writer.Write(f.Data[start:end]); err != nil {
			return fmt.Errorf("%w: frame %s at byte %d: %v", ErrTransport, f.Name, start, err)
		}
		slog.Debug("Wrote chunk to device",
			"frame", f.Name,
			"size", end-start,
		)

		c.sleep(delay)
	}

	return nil
}
