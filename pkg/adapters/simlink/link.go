// Package simlink provides a ports.Link that synthesizes the display tap's
// wire stream, for running the pipeline without hardware.
package simlink

import (
	"context"
	"sync"
	"time"

	"github.com/user/lcdtap/pkg/framing"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
)

// DefaultFrameInterval matches the LCD refresh of about 59.7 Hz.
const DefaultFrameInterval = 16750 * time.Microsecond

// Options configures the simulated device.
type Options struct {
	Layout        protocol.HeaderLayout
	FrameInterval time.Duration
}

// Link generates one frame of scanlines per FrameInterval.
type Link struct {
	geometry pipeline.Geometry
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	pending []byte
	frame   int
	next    time.Time
	closed  bool
}

// New creates a simulated link for the given display geometry.
func New(geometry pipeline.Geometry, opts Options) *Link {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Layout.Name == "" {
		opts.Layout = protocol.LayoutV1
	}
	return &Link{
		geometry: geometry,
		opts:     opts,
		now:      time.Now,
	}
}

// ReadBulk copies pending wire bytes into buf. When nothing is pending it
// waits for the next frame, or fails with ports.ErrReadTimeout if the frame
// is not due within timeout.
func (l *Link) ReadBulk(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, context.Canceled
	}
	if len(l.pending) == 0 {
		now := l.now()
		if l.next.IsZero() {
			l.next = now
		}
		wait := l.next.Sub(now)
		if wait > timeout {
			l.mu.Unlock()
			if err := sleep(ctx, timeout); err != nil {
				return 0, err
			}
			return 0, ports.ErrReadTimeout
		}
		if wait > 0 {
			l.mu.Unlock()
			if err := sleep(ctx, wait); err != nil {
				return 0, err
			}
			l.mu.Lock()
		}
		l.pending = l.renderFrame()
		l.next = l.next.Add(l.opts.FrameInterval)
	}

	n := copy(buf, l.pending)
	l.pending = l.pending[n:]
	l.mu.Unlock()
	return n, nil
}

// renderFrame encodes the current test frame and advances the frame counter.
func (l *Link) renderFrame() []byte {
	g := l.geometry
	out := make([]byte, 0, g.Height*(2+g.Pitch()))
	pixels := make([]byte, g.Pitch())
	for row := 0; row < g.Height; row++ {
		fillRow(pixels, row, l.frame, g)
		h := pipeline.Header{Frame: l.frame % protocol.FrameModulus, Row: row}
		out = append(out, framing.EncodeScanline(h, pixels, l.opts.Layout)...)
	}
	l.frame++
	return out
}

// fillRow draws a diagonal gradient that scrolls one pixel per frame.
func fillRow(pixels []byte, row, frame int, g pipeline.Geometry) {
	for x := 0; x < g.Width; x++ {
		i := x * 3
		pixels[i] = byte((x + frame) * 255 / max(g.Width, 1))
		pixels[i+1] = byte(row * 255 / max(g.Height, 1))
		pixels[i+2] = byte((x + row + frame) & 0xff)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the link. Later reads fail.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.pending = nil
	return nil
}

// Ensure Link implements ports.Link
var _ ports.Link = (*Link)(nil)
