package mocks

import (
	"context"
	"sync"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	SinkName   string
	AcceptFunc func(frame pipeline.Frame) error
	CloseFunc  func() error

	mu     sync.Mutex
	Frames []pipeline.Frame
	Closed bool
}

// NewFrameSink creates a recording sink with the given name.
func NewFrameSink(name string) *FrameSink {
	return &FrameSink{SinkName: name}
}

func (m *FrameSink) Name() string {
	return m.SinkName
}

func (m *FrameSink) Accept(frame pipeline.Frame) error {
	m.mu.Lock()
	m.Frames = append(m.Frames, frame)
	m.mu.Unlock()
	if m.AcceptFunc != nil {
		return m.AcceptFunc(frame)
	}
	return nil
}

func (m *FrameSink) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Received returns a copy of the accepted frames.
func (m *FrameSink) Received() []pipeline.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.Frame(nil), m.Frames...)
}

// IsClosed reports whether Close was called.
func (m *FrameSink) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

var _ ports.FrameSink = (*FrameSink)(nil)

// ByteSource is a mock implementation of ports.ByteSource fed from a fixed
// list of events. Once exhausted it reports ports.ErrSourceClosed.
type ByteSource struct {
	Events []pipeline.StreamEvent
	// Err, when set, is returned instead of ErrSourceClosed at the end.
	Err error

	mu      sync.Mutex
	next    int
	Started bool
	Closed  bool
}

func (m *ByteSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = true
	return nil
}

func (m *ByteSource) Next(ctx context.Context) (pipeline.StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.StreamEvent{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.Events) {
		if m.Err != nil {
			return pipeline.StreamEvent{}, m.Err
		}
		return pipeline.StreamEvent{}, ports.ErrSourceClosed
	}
	ev := m.Events[m.next]
	m.next++
	return ev, nil
}

func (m *ByteSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ ports.ByteSource = (*ByteSource)(nil)
