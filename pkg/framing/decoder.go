// Package framing decodes the self-synchronizing scanline protocol of the
// display tap.
//
// Every scanline starts with a sync byte (bit 7 set) carrying the overflow
// flag, a 5-bit frame counter and the high bit of the row index. All other
// bytes have bit 7 clear: the next one carries the low 7 bits of the row
// index, followed by pitch bytes of 5-bit colour channels.
package framing

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/protocol"
)

var (
	// ErrLostSync is returned when a sync byte appears where payload was expected
	// or a header carries an impossible row.
	ErrLostSync = errors.New("framing: stream synchronization lost")

	// ErrTimeout is returned when the source reported no data in its polling window.
	ErrTimeout = errors.New("framing: no data received")
)

// EventSource is the pull side of a byte source.
type EventSource interface {
	Next(ctx context.Context) (pipeline.StreamEvent, error)
}

// Decoder reads scanlines from a stream of chunks.
// It is not safe for concurrent use.
type Decoder struct {
	src      EventSource
	geometry pipeline.Geometry
	layout   protocol.HeaderLayout

	chunk []byte
	pos   int

	// one byte of pushback, consumed before any read from chunk
	lookahead    byte
	hasLookahead bool
}

// NewDecoder creates a decoder for the given display geometry.
func NewDecoder(src EventSource, geometry pipeline.Geometry, layout protocol.HeaderLayout) *Decoder {
	return &Decoder{
		src:      src,
		geometry: geometry,
		layout:   layout,
	}
}

func (d *Decoder) readByte(ctx context.Context) (byte, error) {
	if d.hasLookahead {
		d.hasLookahead = false
		return d.lookahead, nil
	}

	for d.pos >= len(d.chunk) {
		ev, err := d.src.Next(ctx)
		if err != nil {
			return 0, err
		}
		if ev.Timeout {
			return 0, ErrTimeout
		}
		d.chunk = ev.Data
		d.pos = 0
	}

	b := d.chunk[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readDataByte(ctx context.Context) (byte, error) {
	b, err := d.readByte(ctx)
	if err != nil {
		return 0, err
	}
	if b&protocol.SyncBit != 0 {
		d.lookahead = b
		d.hasLookahead = true
		return 0, ErrLostSync
	}
	return b, nil
}

// ReadHeader discards bytes up to the next sync byte and decodes the header
// that starts there.
func (d *Decoder) ReadHeader(ctx context.Context) (pipeline.Header, error) {
	var sync byte
	for sync&protocol.SyncBit == 0 {
		b, err := d.readByte(ctx)
		if err != nil {
			return pipeline.Header{}, err
		}
		sync = b
	}

	low, err := d.readDataByte(ctx)
	if err != nil {
		return pipeline.Header{}, err
	}

	h := pipeline.Header{
		Overflow: sync&d.layout.OverflowMask != 0,
		Frame:    int(sync&protocol.FrameMask) >> protocol.FrameShift,
		Row:      int(sync&protocol.RowHighMask)<<7 | int(low),
	}
	if h.Row > d.geometry.Height {
		return pipeline.Header{}, fmt.Errorf("%w: row %d beyond height %d", ErrLostSync, h.Row, d.geometry.Height)
	}
	return h, nil
}

// ReadScanline decodes one complete scanline. On error no partial scanline
// is returned; a sync byte met inside the payload is kept for the next call.
func (d *Decoder) ReadScanline(ctx context.Context) (pipeline.Scanline, error) {
	h, err := d.ReadHeader(ctx)
	if err != nil {
		return pipeline.Scanline{}, err
	}

	pixels := make([]byte, d.geometry.Pitch())
	for i := range pixels {
		b, err := d.readDataByte(ctx)
		if err != nil {
			return pipeline.Scanline{}, err
		}
		pixels[i] = b << protocol.ChannelShift
	}

	return pipeline.Scanline{Header: h, Pixels: pixels}, nil
}
