// Package capture implements the live byte source: a goroutine pumping
// bounded bulk reads from the device link into an unbounded queue.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
	"github.com/user/lcdtap/pkg/queue"
)

// Options configures the capture loop.
type Options struct {
	BufferSize  int
	ReadTimeout time.Duration

	// Recorder, when set, receives every data chunk before it is published.
	Recorder ports.Recorder
}

// DefaultOptions returns Options with the device's tuning constants.
func DefaultOptions() Options {
	return Options{
		BufferSize:  protocol.BufferSize,
		ReadTimeout: protocol.ReadTimeout,
	}
}

// Source is a ports.ByteSource reading from a live link.
type Source struct {
	link   ports.Link
	logger ports.Logger
	opts   Options
	now    func() time.Time

	q      *queue.Unbounded[pipeline.StreamEvent]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a live source. The link must already be set up.
func New(link ports.Link, logger ports.Logger, opts Options) *Source {
	if opts.BufferSize <= 0 {
		opts.BufferSize = protocol.BufferSize
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = protocol.ReadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		link:   link,
		logger: logger.WithComponent("capture"),
		opts:   opts,
		now:    time.Now,
		q:      queue.NewUnbounded[pipeline.StreamEvent](),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the capture goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ports.ErrSourceClosed
	}
	if s.started {
		return fmt.Errorf("capture: already started")
	}
	s.started = true

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Source) run() {
	defer s.wg.Done()
	defer s.q.Close()

	recorder := s.opts.Recorder
	buf := make([]byte, s.opts.BufferSize)
	last := s.now()
	chunks := 0

	s.logger.Debug("Capture loop started with %d byte reads", s.opts.BufferSize)
	for s.ctx.Err() == nil {
		readStart := time.Now()
		n, err := s.link.ReadBulk(s.ctx, buf, s.opts.ReadTimeout)

		var ev pipeline.StreamEvent
		switch {
		case err != nil:
			if !errors.Is(err, ports.ErrReadTimeout) && s.ctx.Err() == nil {
				s.logger.Debug("Bulk read failed: %v", err)
				// a failing link returns at once; a Timeout still means one
				// empty read window
				s.sleepUntil(readStart.Add(s.opts.ReadTimeout))
			}
			ev = pipeline.TimeoutEvent()
		case n == 0:
			continue
		default:
			chunk := make(pipeline.Chunk, n)
			copy(chunk, buf[:n])
			chunks++

			if recorder != nil {
				now := s.now()
				if err := recorder.Record(now.Sub(last), chunk); err != nil {
					s.logger.Error("Recording failed, disabling recorder: %v", err)
					recorder = nil
				}
				last = now
			}
			ev = pipeline.DataEvent(chunk)
		}

		if s.ctx.Err() != nil {
			break
		}
		select {
		case s.q.In() <- ev:
		case <-s.ctx.Done():
		}
	}
	s.logger.Debug("Capture loop stopped after %d chunks", chunks)
}

// sleepUntil waits until deadline or until the source is closed.
func (s *Source) sleepUntil(deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}

// Next blocks until the next stream event.
func (s *Source) Next(ctx context.Context) (pipeline.StreamEvent, error) {
	select {
	case ev, ok := <-s.q.Out():
		if !ok {
			return pipeline.StreamEvent{}, ports.ErrSourceClosed
		}
		return ev, nil
	case <-ctx.Done():
		return pipeline.StreamEvent{}, ctx.Err()
	}
}

// Close stops the capture goroutine, waits for it, then finishes the
// recording and releases the link.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if started {
		s.wg.Wait()
	} else {
		s.q.Close()
	}
	for range s.q.Out() {
	}

	var errs []error
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recorder: %w", err))
		}
	}
	if err := s.link.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close link: %w", err))
	}
	return errors.Join(errs...)
}

// Ensure Source implements ports.ByteSource
var _ ports.ByteSource = (*Source)(nil)
