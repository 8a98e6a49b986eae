package ports

import (
	"github.com/user/lcdtap/pkg/pipeline"
)

// FrameSink consumes completed frames.
// Accept is called from a single goroutine, in emission order.
type FrameSink interface {
	// Name identifies the sink in logs and summaries.
	Name() string

	// Accept consumes one frame snapshot. A failure is reported but
	// does not stop delivery of later frames.
	Accept(frame pipeline.Frame) error

	// Close flushes pending output and releases resources.
	Close() error
}
