package recordlog

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// nopCloser wraps a buffer so the Writer can close it.
type nopCloser struct {
	*bytes.Buffer
	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func writeLog(t *testing.T, entries []Entry) []byte {
	t.Helper()
	buf := &nopCloser{Buffer: &bytes.Buffer{}}
	w, err := NewWriter(buf)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, e := range entries {
		if err := w.Record(e.Delay, e.Payload); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !buf.closed {
		t.Error("expected underlying file to be closed")
	}
	return buf.Bytes()
}

func TestWriterReader(t *testing.T) {
	entries := []Entry{
		{Delay: 0, Payload: []byte{0x80, 0x01, 0x02}},
		{Delay: 5 * time.Millisecond, Payload: []byte{0x03}},
		{Delay: time.Microsecond, Payload: []byte{}},
	}
	data := writeLog(t, entries)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	for i, want := range entries {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("entry %d: unexpected error: %v", i, err)
		}
		if got.Delay != want.Delay {
			t.Errorf("entry %d: expected delay %v, got %v", i, want.Delay, got.Delay)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("entry %d: expected payload %x, got %x", i, want.Payload, got.Payload)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of log, got %v", err)
	}
}

func TestWireFormat(t *testing.T) {
	data := writeLog(t, []Entry{{Delay: 0x01020304 * time.Nanosecond, Payload: []byte{0xaa, 0xbb}}})

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x00, 0x02, 0xaa, 0xbb}
	if !bytes.Equal(raw, want) {
		t.Errorf("expected %x, got %x", want, raw)
	}
}

func TestClampDelay(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  uint32
	}{
		{"negative", -time.Second, 0},
		{"zero", 0, 0},
		{"small", 5 * time.Millisecond, 5000000},
		{"max", time.Duration(math.MaxUint32), math.MaxUint32},
		{"overflow", 10 * time.Second, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDelay(tt.delay); got != tt.want {
				t.Errorf("clampDelay(%v) = %d, want %d", tt.delay, got, tt.want)
			}
		})
	}
}

func TestReader_TruncatedEntry(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	// delay + length claiming 4 bytes, but only 2 follow
	gz.Write([]byte{0, 0, 0, 0, 0, 0, 0, 4, 0x01, 0x02})
	gz.Close()

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	_, err = r.Next()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestReader_PartialDelayEndsLog(t *testing.T) {
	for _, tail := range [][]byte{{0}, {0, 0}, {0, 0, 0}} {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte{0, 0, 0, 5, 0, 0, 0, 1, 0x80})
		gz.Write(tail)
		gz.Close()

		r, err := NewReader(&buf)
		if err != nil {
			t.Fatalf("NewReader failed: %v", err)
		}
		e, err := r.Next()
		if err != nil || e.Delay != 5 || !bytes.Equal(e.Payload, []byte{0x80}) {
			t.Fatalf("tail %d: unexpected first entry %+v (err=%v)", len(tail), e, err)
		}
		if _, err := r.Next(); err != io.EOF {
			t.Errorf("tail %d: expected io.EOF, got %v", len(tail), err)
		}
	}
}

func TestReader_TruncatedLengthIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte{0, 0, 0, 0, 0, 0})
	gz.Close()

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestNewReader_MalformedHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not a gzip stream")))
	if err == nil {
		t.Fatal("expected error for malformed gzip header")
	}
}
