package tasks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/vinayprograms/voyagekit/errors"
)

// DefaultBuffer is the stream channel capacity used when none is given.
const DefaultBuffer = 16

// Stream delivers items from a background producer in the order it emits
// them. The consumer either ranges over C or calls Next, and calls Close
// when it wants no more items.
type Stream[T any] struct {
	id       string
	ch       chan T
	stop     chan struct{} // closed by Close
	stopOnce sync.Once
	finished chan struct{} // closed when the producer has returned
	err      error
}

// Go starts produce in its own goroutine. Items passed to emit are queued
// on a channel of the given capacity; emit blocks while the channel is full
// and returns false once the consumer has closed the stream. The error
// produce returns becomes the stream's terminal error.
func Go[T any](buffer int, produce func(emit func(T) bool) error) *Stream[T] {
	if buffer < 0 {
		buffer = DefaultBuffer
	}
	s := &Stream[T]{
		id:       uuid.New().String(),
		ch:       make(chan T, buffer),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go s.run(produce)
	return s
}

// Empty returns a stream that has already ended with err, which may be nil.
func Empty[T any](err error) *Stream[T] {
	s := &Stream[T]{
		id:       uuid.New().String(),
		ch:       make(chan T),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	s.finish(err)
	return s
}

func (s *Stream[T]) run(produce func(emit func(T) bool) error) {
	var (
		err      error
		returned bool
	)
	defer func() {
		if !returned {
			err = errors.Canceled("stream producer exited", errors.WithCallID(s.id))
		}
		s.finish(err)
	}()

	var catcher panics.Catcher
	catcher.Try(func() {
		err = produce(s.emit)
	})
	if r := catcher.Recovered(); r != nil {
		err = errors.Canceled("stream producer panicked",
			errors.WithCallID(s.id),
			errors.WithCause(errors.RecoverPanic(r.Value)),
		)
	}
	returned = true
}

// finish records the terminal error before closing the item channel, so a
// consumer that sees the channel closed also sees the error.
func (s *Stream[T]) finish(err error) {
	s.err = err
	close(s.finished)
	close(s.ch)
}

func (s *Stream[T]) emit(v T) bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	select {
	case s.ch <- v:
		return true
	case <-s.stop:
		return false
	}
}

// ID returns the call ID assigned when the stream was created.
func (s *Stream[T]) ID() string {
	return s.id
}

// C returns the item channel. It is closed after the producer returns.
// Items queued before Close may still be received.
func (s *Stream[T]) C() <-chan T {
	return s.ch
}

// Next returns the next item. ok is false once the stream is drained or
// ctx ends; check Err and ctx.Err to tell the two apart.
func (s *Stream[T]) Next(ctx context.Context) (v T, ok bool) {
	select {
	case v, ok = <-s.ch:
		return v, ok
	case <-ctx.Done():
		return v, false
	}
}

// Close tells the producer to stop. It does not wait for the producer and
// does not interrupt a call already in flight. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done is closed once the producer has returned.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.finished
}

// Err returns the producer's terminal error. It is nil while the producer
// is still running and after a clean finish. A call that fails after the
// consumer closed the stream still reports its error here.
func (s *Stream[T]) Err() error {
	select {
	case <-s.finished:
		return s.err
	default:
		return nil
	}
}

// Collect reads the rest of the stream into a slice. If ctx ends while the
// producer is still running, the stream is closed and Collect returns the
// items read so far with a CANCELED error. If the producer has already
// finished, the buffered items are drained and returned in full.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for {
		v, ok := s.Next(ctx)
		if !ok {
			break
		}
		items = append(items, v)
	}
	if err := ctx.Err(); err != nil {
		select {
		case <-s.finished:
			// ch is closed right after finished, so this ends.
			for v := range s.ch {
				items = append(items, v)
			}
		default:
			s.Close()
			return items, errors.Wrap(err, "collect abandoned", errors.WithCallID(s.id))
		}
	}
	return items, s.Err()
}
