package ports

import (
	"context"
	"errors"
	"time"
)

// ErrReadTimeout is returned by Link.ReadBulk when no data arrived in time.
var ErrReadTimeout = errors.New("ports: link read timed out")

// Link abstracts the streaming half of the capture device after setup.
type Link interface {
	// ReadBulk reads at most len(buf) bytes, waiting no longer than timeout.
	ReadBulk(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// Close releases the interface and the device.
	Close() error
}

// LinkOptions configures device setup.
type LinkOptions struct {
	// Bitstream is uploaded to the FPGA when non-empty.
	Bitstream []byte
}
