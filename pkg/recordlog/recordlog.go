// Package recordlog reads and writes the compressed capture log used for
// deterministic replay.
//
// A log is a gzip stream of entries, each encoded as
//
//	delay_ns  uint32 big-endian
//	length    uint32 big-endian
//	payload   length bytes
//
// End of log is end of stream on the delay field.
package recordlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt is returned when an entry is truncated or malformed.
var ErrCorrupt = errors.New("recordlog: corrupt entry")

// MaxPayload bounds the length field so a corrupt log cannot request
// an absurd allocation.
const MaxPayload = 1 << 24

// Entry is one recorded chunk.
type Entry struct {
	Delay   time.Duration
	Payload []byte
}

// Writer appends entries to a compressed log.
type Writer struct {
	dst io.WriteCloser
	gz  *gzip.Writer
	hdr [8]byte
}

// NewWriter creates a Writer that owns dst and closes it on Close.
func NewWriter(dst io.WriteCloser) (*Writer, error) {
	gz, err := gzip.NewWriterLevel(dst, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	return &Writer{dst: dst, gz: gz}, nil
}

// Record appends one entry. Delays that do not fit in 32 bits are clamped.
func (w *Writer) Record(delay time.Duration, payload []byte) error {
	binary.BigEndian.PutUint32(w.hdr[0:4], clampDelay(delay))
	binary.BigEndian.PutUint32(w.hdr[4:8], uint32(len(payload)))
	if _, err := w.gz.Write(w.hdr[:]); err != nil {
		return fmt.Errorf("write entry header: %w", err)
	}
	if _, err := w.gz.Write(payload); err != nil {
		return fmt.Errorf("write entry payload: %w", err)
	}
	return nil
}

// Close finishes the gzip stream and closes the underlying file.
func (w *Writer) Close() error {
	err := w.gz.Close()
	if cerr := w.dst.Close(); err == nil {
		err = cerr
	}
	return err
}

func clampDelay(d time.Duration) uint32 {
	switch {
	case d < 0:
		return 0
	case d > time.Duration(math.MaxUint32):
		return math.MaxUint32
	default:
		return uint32(d)
	}
}

// Reader reads entries from a compressed log.
type Reader struct {
	gz  *gzip.Reader
	br  *bufio.Reader
	hdr [8]byte
}

// NewReader validates the gzip header and returns a Reader.
func NewReader(src io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	return &Reader{gz: gz, br: bufio.NewReader(gz)}, nil
}

// Next returns the next entry, io.EOF at the end of the log (including a
// partial delay field), or an error wrapping ErrCorrupt.
func (r *Reader) Next() (Entry, error) {
	// a delay field cut short is the tail of an interrupted recording
	n, err := io.ReadFull(r.br, r.hdr[0:4])
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return Entry{}, io.EOF
	case err != nil:
		return Entry{}, fmt.Errorf("%w: delay field after %d bytes: %v", ErrCorrupt, n, err)
	}
	if _, err := io.ReadFull(r.br, r.hdr[4:8]); err != nil {
		return Entry{}, fmt.Errorf("%w: length field: %v", ErrCorrupt, err)
	}

	delay := time.Duration(binary.BigEndian.Uint32(r.hdr[0:4]))
	length := binary.BigEndian.Uint32(r.hdr[4:8])
	if length > MaxPayload {
		return Entry{}, fmt.Errorf("%w: payload length %d", ErrCorrupt, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return Entry{}, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	return Entry{Delay: delay, Payload: payload}, nil
}

// Close releases the decompressor. The underlying reader is not closed.
func (r *Reader) Close() error {
	return r.gz.Close()
}
