package replay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/user/lcdtap/pkg/adapters/logger"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/recordlog"
)

type bufferCloser struct {
	*bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func buildLog(t *testing.T, entries ...recordlog.Entry) []byte {
	t.Helper()
	buf := &bufferCloser{Buffer: &bytes.Buffer{}}
	w, err := recordlog.NewWriter(buf)
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
	return buf.Bytes()
}

func open(t *testing.T, data []byte, opts Options) (*Source, *bufferCloser) {
	t.Helper()
	src := &bufferCloser{Buffer: bytes.NewBuffer(data)}
	s, err := New(src, logger.NewNoop(), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s, src
}

func next(t *testing.T, s *Source) (pipeline.StreamEvent, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Next(ctx)
}

func TestSource_ReplaysWithTiming(t *testing.T) {
	data := buildLog(t,
		recordlog.Entry{Delay: 0, Payload: []byte("A")},
		recordlog.Entry{Delay: 30 * time.Millisecond, Payload: []byte("B")},
	)
	s, src := open(t, data, Options{IdleInterval: 10 * time.Millisecond})

	ev, err := next(t, s)
	if err != nil || string(ev.Data) != "A" {
		t.Fatalf("expected A, got %+v (%v)", ev, err)
	}
	gotA := time.Now()

	ev, err = next(t, s)
	if err != nil || string(ev.Data) != "B" {
		t.Fatalf("expected B, got %+v (%v)", ev, err)
	}
	if gap := time.Since(gotA); gap < 20*time.Millisecond {
		t.Errorf("B arrived too early: %v after A", gap)
	}

	// Exhausted logs keep ticking timeouts like an idle device.
	for i := 0; i < 3; i++ {
		ev, err = next(t, s)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ev.Timeout {
			t.Errorf("expected timeout event, got %+v", ev)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !src.closed {
		t.Error("expected underlying reader to be closed")
	}
}

func TestSource_FastModeEndsAtEOF(t *testing.T) {
	data := buildLog(t,
		recordlog.Entry{Delay: time.Hour, Payload: []byte{1, 2}},
		recordlog.Entry{Delay: time.Hour, Payload: []byte{3}},
	)
	s, _ := open(t, data, Options{Fast: true})
	defer s.Close()

	var got [][]byte
	for {
		ev, err := next(t, s)
		if errors.Is(err, ports.ErrSourceClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, ev.Data)
	}

	if len(got) != 2 || !bytes.Equal(got[0], []byte{1, 2}) || !bytes.Equal(got[1], []byte{3}) {
		t.Errorf("unexpected chunks: %v", got)
	}
}

func TestSource_EmptyLog(t *testing.T) {
	s, _ := open(t, buildLog(t), Options{Fast: true})
	defer s.Close()

	if _, err := next(t, s); !errors.Is(err, ports.ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed, got %v", err)
	}
}

func TestSource_CorruptEntry(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], 0)
	binary.BigEndian.PutUint32(hdr[4:8], 1)
	gz.Write(hdr[:])
	gz.Write([]byte{0x42})
	binary.BigEndian.PutUint32(hdr[4:8], 100)
	gz.Write(hdr[:])
	gz.Write([]byte{1, 2, 3})
	gz.Close()

	s, _ := open(t, buf.Bytes(), Options{Fast: true})
	defer s.Close()

	ev, err := next(t, s)
	if err != nil || !bytes.Equal(ev.Data, []byte{0x42}) {
		t.Fatalf("expected first entry, got %+v (%v)", ev, err)
	}
	_, err = next(t, s)
	if !errors.Is(err, recordlog.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestNew_RejectsNonGzip(t *testing.T) {
	src := io.NopCloser(bytes.NewReader([]byte("plain text")))
	if _, err := New(src, logger.NewNoop(), DefaultOptions()); err == nil {
		t.Error("expected error for non-gzip input")
	}
}

func TestSource_CloseStopsIdleTicker(t *testing.T) {
	s, _ := open(t, buildLog(t), Options{IdleInterval: time.Millisecond})

	if _, err := next(t, s); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
