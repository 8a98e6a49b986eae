// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/user/lcdtap/pkg/pipeline"
)

// ErrSourceClosed is returned by ByteSource.Next after the source was closed
// or ran out of data.
var ErrSourceClosed = errors.New("ports: byte source closed")

// ByteSource produces an ordered, potentially infinite sequence of stream
// events. Exactly one goroutine may call Next.
type ByteSource interface {
	// Start launches the producer goroutine.
	Start() error

	// Next blocks until the next event is available.
	// It returns ErrSourceClosed once the source has stopped, ctx.Err() on
	// cancellation, or a fatal producer error.
	Next(ctx context.Context) (pipeline.StreamEvent, error)

	// Close stops the producer and waits for it to exit.
	Close() error
}

// Recorder persists captured chunks together with their inter-arrival delay.
type Recorder interface {
	// Record appends one chunk to the log.
	Record(delay time.Duration, payload []byte) error

	// Close flushes and closes the log.
	Close() error
}
