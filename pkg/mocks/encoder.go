package mocks

import (
	"image"
	"sync"

	"github.com/user/lcdtap/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	BeginFunc       func(width, height int, fps float64, opts ports.EncoderOptions) error
	EncodeFrameFunc func(img image.Image) error
	EndFunc         func() ([]byte, error)

	mu sync.Mutex

	// Recorded calls for verification
	BeginCalled  bool
	BeginWidth   int
	BeginHeight  int
	BeginFPS     float64
	EncodedCount int
	EndCalled    bool
}

func (m *VideoEncoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	m.mu.Lock()
	m.BeginCalled = true
	m.BeginWidth, m.BeginHeight, m.BeginFPS = width, height, fps
	m.mu.Unlock()
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) EncodeFrame(img image.Image) error {
	m.mu.Lock()
	m.EncodedCount++
	m.mu.Unlock()
	if m.EncodeFrameFunc != nil {
		return m.EncodeFrameFunc(img)
	}
	return nil
}

func (m *VideoEncoder) End() ([]byte, error) {
	m.mu.Lock()
	m.EndCalled = true
	m.mu.Unlock()
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	// minimal ftyp box
	return []byte{0, 0, 0, 8, 'f', 't', 'y', 'p'}, nil
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
