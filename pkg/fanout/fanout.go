// Package fanout delivers assembled frames to any number of sinks, each on
// its own worker goroutine so a slow sink never stalls the decode loop.
package fanout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/queue"
)

// Option configures a sink registration.
type Option func(*worker)

// Visual marks a sink that also receives diagnostic frames.
func Visual() Option {
	return func(w *worker) { w.visual = true }
}

// Lossy gives the sink a latest-frame mailbox instead of an unbounded queue.
// Frames the sink is too slow for are dropped.
func Lossy() Option {
	return func(w *worker) { w.lossy = true }
}

// SinkStats reports delivery counters for one sink.
type SinkStats struct {
	Name      string
	Delivered int64
	Failed    int64
	Dropped   int64
}

type worker struct {
	sink   ports.FrameSink
	visual bool
	lossy  bool

	queue   *queue.Unbounded[pipeline.Frame]
	mailbox chan pipeline.Frame
	done    chan struct{}

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Fanout implements the assembler's emitter over registered sinks.
type Fanout struct {
	logger ports.Logger

	mu      sync.Mutex
	workers []*worker
	closed  bool
}

// New creates an empty fan-out.
func New(logger ports.Logger) *Fanout {
	return &Fanout{logger: logger.WithComponent("fanout")}
}

// Register adds a sink and starts its worker.
func (f *Fanout) Register(sink ports.FrameSink, opts ...Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("fanout: register %s after close", sink.Name())
	}

	w := &worker{sink: sink, done: make(chan struct{})}
	for _, opt := range opts {
		opt(w)
	}

	var frames <-chan pipeline.Frame
	if w.lossy {
		w.mailbox = make(chan pipeline.Frame, 1)
		frames = w.mailbox
	} else {
		w.queue = queue.NewUnbounded[pipeline.Frame]()
		frames = w.queue.Out()
	}

	f.workers = append(f.workers, w)
	go f.run(w, frames)

	f.logger.Debug("Registered sink %s (visual=%t, lossy=%t)", sink.Name(), w.visual, w.lossy)
	return nil
}

func (f *Fanout) run(w *worker, frames <-chan pipeline.Frame) {
	defer close(w.done)

	for frame := range frames {
		if err := w.sink.Accept(frame); err != nil {
			// only the first failure is loud; a broken sink fails every frame
			if w.failed.Add(1) == 1 {
				f.logger.Error("Sink %s failed: %v", w.sink.Name(), err)
			} else {
				f.logger.Debug("Sink %s failed: %v", w.sink.Name(), err)
			}
			continue
		}
		w.delivered.Add(1)
	}
}

// Emit delivers a frame to every sink.
func (f *Fanout) Emit(frame pipeline.Frame) {
	f.deliver(frame, false)
}

// EmitDiagnostic delivers a frame to visual sinks only.
func (f *Fanout) EmitDiagnostic(frame pipeline.Frame) {
	f.deliver(frame, true)
}

func (f *Fanout) deliver(frame pipeline.Frame, diagnostic bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, w := range f.workers {
		if diagnostic && !w.visual {
			continue
		}
		if w.lossy {
			w.post(frame)
		} else {
			w.queue.In() <- frame
		}
	}
}

// post replaces whatever is waiting in the mailbox with frame.
func (w *worker) post(frame pipeline.Frame) {
	select {
	case w.mailbox <- frame:
		return
	default:
	}
	select {
	case <-w.mailbox:
		w.dropped.Add(1)
	default:
	}
	select {
	case w.mailbox <- frame:
	default:
		w.dropped.Add(1)
	}
}

// Close stops accepting frames, lets persistent sinks drain their queues,
// waits for every worker and closes every sink.
func (f *Fanout) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	workers := f.workers
	f.mu.Unlock()

	for _, w := range workers {
		if w.lossy {
			close(w.mailbox)
		} else {
			w.queue.Close()
		}
	}

	var errs []error
	for _, w := range workers {
		<-w.done
		if err := w.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.sink.Name(), err))
		}
		f.logger.Debug("Sink %s closed after %d frames", w.sink.Name(), w.delivered.Load())
	}
	return errors.Join(errs...)
}

// Stats returns per-sink counters in registration order.
func (f *Fanout) Stats() []SinkStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := make([]SinkStats, 0, len(f.workers))
	for _, w := range f.workers {
		stats = append(stats, SinkStats{
			Name:      w.sink.Name(),
			Delivered: w.delivered.Load(),
			Failed:    w.failed.Load(),
			Dropped:   w.dropped.Load(),
		})
	}
	return stats
}
