package sdlpreview

import (
	"sync"

	"github.com/user/lcdtap/pkg/pipeline"
)

// mailbox holds at most one pending frame. put never blocks.
type mailbox struct {
	mu      sync.Mutex
	frame   pipeline.Frame
	pending bool
	signal  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(frame pipeline.Frame) {
	m.mu.Lock()
	m.frame = frame
	m.pending = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) ready() <-chan struct{} {
	return m.signal
}

func (m *mailbox) take() (pipeline.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return pipeline.Frame{}, false
	}
	m.pending = false
	return m.frame, true
}
