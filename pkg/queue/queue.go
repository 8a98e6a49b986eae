// Package queue provides an unbounded single-producer/single-consumer queue
// built on channels.
package queue

// Unbounded is an ordered FIFO whose sends never block on the consumer.
// Items sent on In are delivered on Out in order. Closing the queue delivers
// the remaining items and then closes Out.
type Unbounded[T any] struct {
	in  chan T
	out chan T
}

// NewUnbounded starts the queue's forwarding goroutine.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.run()
	return q
}

// In returns the producer side.
func (q *Unbounded[T]) In() chan<- T {
	return q.in
}

// Out returns the consumer side.
func (q *Unbounded[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting items. Only the producer may call Close.
func (q *Unbounded[T]) Close() {
	close(q.in)
}

func (q *Unbounded[T]) run() {
	defer close(q.out)

	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var head T
		if len(buf) > 0 {
			out = q.out
			head = buf[0]
		}

		select {
		case item, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, item)
		case out <- head:
			var zero T
			buf[0] = zero
			buf = buf[1:]
		}
	}
}
