// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/lcdtap/pkg/ports"
)

// ReadResult is one scripted ReadBulk outcome.
type ReadResult struct {
	Data []byte
	Err  error
}

// Link is a mock implementation of ports.Link.
// Scripted reads are returned in order; once exhausted ReadBulk blocks until
// ctx is cancelled, like an idle device would between timeouts.
type Link struct {
	ReadBulkFunc func(ctx context.Context, buf []byte, timeout time.Duration) (int, error)
	CloseFunc    func() error

	mu      sync.Mutex
	Reads   []ReadResult
	next    int
	Closed  bool
	Timeout time.Duration
}

func (m *Link) ReadBulk(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if m.ReadBulkFunc != nil {
		return m.ReadBulkFunc(ctx, buf, timeout)
	}

	m.mu.Lock()
	m.Timeout = timeout
	if m.next < len(m.Reads) {
		r := m.Reads[m.next]
		m.next++
		m.mu.Unlock()
		if r.Err != nil {
			return 0, r.Err
		}
		return copy(buf, r.Data), nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return 0, ctx.Err()
}

func (m *Link) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// IsClosed reports whether Close was called.
func (m *Link) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

var _ ports.Link = (*Link)(nil)

// RecordCall records a call to Recorder.Record.
type RecordCall struct {
	Delay   time.Duration
	Payload []byte
}

// Recorder is a mock implementation of ports.Recorder.
type Recorder struct {
	RecordFunc func(delay time.Duration, payload []byte) error

	mu     sync.Mutex
	Calls  []RecordCall
	Closed bool
}

func (m *Recorder) Record(delay time.Duration, payload []byte) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, RecordCall{Delay: delay, Payload: payload})
	m.mu.Unlock()
	if m.RecordFunc != nil {
		return m.RecordFunc(delay, payload)
	}
	return nil
}

func (m *Recorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Snapshot returns a copy of the recorded calls.
func (m *Recorder) Snapshot() []RecordCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordCall(nil), m.Calls...)
}

var _ ports.Recorder = (*Recorder)(nil)
