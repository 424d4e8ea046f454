package tasks

import (
	"context"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/vinayprograms/voyagekit/errors"
)

// Future is the pending result of one background call.
// All methods are safe for concurrent use.
type Future[T any] struct {
	id    string
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		id:   uuid.New().String(),
		done: make(chan struct{}),
	}
}

// Spawn starts fn in its own goroutine and returns its Future.
func Spawn[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go f.run(fn)
	return f
}

// Resolved returns a Future already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, nil)
	return f
}

// Failed returns a Future already completed with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.resolve(zero, err)
	return f
}

func (f *Future[T]) run(fn func() (T, error)) {
	var (
		v        T
		err      error
		returned bool
	)
	defer func() {
		if !returned {
			// runtime.Goexit
			var zero T
			f.resolve(zero, errors.Canceled("task exited without a result", errors.WithCallID(f.id)))
		}
	}()

	var catcher panics.Catcher
	catcher.Try(func() {
		v, err = fn()
	})
	if r := catcher.Recovered(); r != nil {
		var zero T
		v = zero
		err = errors.Canceled("task panicked",
			errors.WithCallID(f.id),
			errors.WithCause(errors.RecoverPanic(r.Value)),
		)
	}

	returned = true
	f.resolve(v, err)
}

func (f *Future[T]) resolve(v T, err error) {
	f.value = v
	f.err = err
	close(f.done)
}

// ID returns the call ID assigned when the Future was created.
func (f *Future[T]) ID() string {
	return f.id
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends. Every call
// returns the same result. If ctx ends first, Await returns a CANCELED
// error wrapping ctx.Err(); the background call keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "await abandoned", errors.WithCallID(f.id))
	}
}
