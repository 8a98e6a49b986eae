// Package replay implements the byte source that plays back a record log
// with its original inter-chunk timing.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
	"github.com/user/lcdtap/pkg/queue"
	"github.com/user/lcdtap/pkg/recordlog"
)

// Options configures playback.
type Options struct {
	// IdleInterval is the Timeout cadence once the log is exhausted.
	IdleInterval time.Duration

	// Fast ignores recorded delays and closes the source at end of log
	// instead of idling.
	Fast bool
}

// DefaultOptions returns Options matching the live device's read timeout.
func DefaultOptions() Options {
	return Options{IdleInterval: protocol.IdleInterval}
}

// Source is a ports.ByteSource reading a record log.
type Source struct {
	src    io.ReadCloser
	reader *recordlog.Reader
	logger ports.Logger
	opts   Options

	q      *queue.Unbounded[pipeline.StreamEvent]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	err     error
	started bool
	closed  bool
}

// New opens a record log. A malformed log header is reported here, before
// any goroutine starts. The source owns src and closes it on Close.
func New(src io.ReadCloser, logger ports.Logger, opts Options) (*Source, error) {
	reader, err := recordlog.NewReader(src)
	if err != nil {
		return nil, err
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = protocol.IdleInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		src:    src,
		reader: reader,
		logger: logger.WithComponent("replay"),
		opts:   opts,
		q:      queue.NewUnbounded[pipeline.StreamEvent](),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the playback goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ports.ErrSourceClosed
	}
	if s.started {
		return fmt.Errorf("replay: already started")
	}
	s.started = true

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Source) run() {
	defer s.wg.Done()
	defer s.q.Close()

	// deadlines accumulate from the start so sleep overshoot does not drift
	due := time.Now()
	entries := 0
	for {
		e, err := s.reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.fail(err)
			return
		}
		entries++

		if !s.opts.Fast {
			due = due.Add(e.Delay)
			if !s.sleepUntil(due) {
				return
			}
		}
		if !s.publish(pipeline.DataEvent(e.Payload)) {
			return
		}
	}

	s.logger.Info("Replay finished after %d chunks", entries)
	if s.opts.Fast {
		return
	}

	ticker := time.NewTicker(s.opts.IdleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.publish(pipeline.TimeoutEvent()) {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Source) sleepUntil(due time.Time) bool {
	wait := time.Until(due)
	if wait <= 0 {
		return s.ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Source) publish(ev pipeline.StreamEvent) bool {
	select {
	case s.q.In() <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Source) fail(err error) {
	s.logger.Error("Record log is corrupt: %v", err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Next blocks until the next stream event. After a corrupt entry it
// returns an error wrapping recordlog.ErrCorrupt.
func (s *Source) Next(ctx context.Context) (pipeline.StreamEvent, error) {
	select {
	case ev, ok := <-s.q.Out():
		if !ok {
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err != nil {
				return pipeline.StreamEvent{}, fmt.Errorf("replay: %w", err)
			}
			return pipeline.StreamEvent{}, ports.ErrSourceClosed
		}
		return ev, nil
	case <-ctx.Done():
		return pipeline.StreamEvent{}, ctx.Err()
	}
}

// Close stops playback, waits for the goroutine and closes the log.
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

	return errors.Join(s.reader.Close(), s.src.Close())
}

// Ensure Source implements ports.ByteSource
var _ ports.ByteSource = (*Source)(nil)
