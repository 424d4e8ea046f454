package tasks

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vinayprograms/voyagekit/errors"
)

func produceN(n int, emitted *atomic.Int32) func(emit func(int) bool) error {
	return func(emit func(int) bool) error {
		for i := 0; i < n; i++ {
			if !emit(i) {
				return nil
			}
			if emitted != nil {
				emitted.Add(1)
			}
		}
		return nil
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not finish")
	}
}

func TestStream_Order(t *testing.T) {
	s := Go(4, produceN(10, nil))
	defer s.Close()

	var got []int
	for v := range s.C() {
		got = append(got, v)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 items, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("item %d: expected %d, got %d", i, i, v)
		}
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStream_CloseStopsProducer(t *testing.T) {
	const total = 1000
	var emitted atomic.Int32

	s := Go(DefaultBuffer, produceN(total, &emitted))

	first, ok := s.Next(context.Background())
	if !ok || first != 0 {
		t.Fatalf("expected first item 0, got %d (ok=%v)", first, ok)
	}
	s.Close()

	waitDone(t, s.Done())

	// At most the item read, a full buffer and one send racing Close.
	if n := emitted.Load(); n > DefaultBuffer+2 {
		t.Errorf("producer kept going after Close: %d items emitted", n)
	}
	if n := emitted.Load(); n >= total {
		t.Errorf("expected producer to stop early, emitted all %d", n)
	}
	if err := s.Err(); err != nil {
		t.Errorf("closing should not be an error, got %v", err)
	}
}

func TestStream_ProducerError(t *testing.T) {
	want := errors.Network(context.DeadlineExceeded)
	s := Go(DefaultBuffer, func(emit func(string) bool) error {
		return want
	})

	items, err := s.Collect(context.Background())
	if len(items) != 0 {
		t.Errorf("expected no items, got %v", items)
	}
	if err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestStream_ErrorAfterItems(t *testing.T) {
	want := errors.MalformedResponse("truncated")
	s := Go(DefaultBuffer, func(emit func(int) bool) error {
		emit(1)
		emit(2)
		return want
	})

	items, err := s.Collect(context.Background())
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %v", items)
	}
	if err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestStream_ErrNilWhileRunning(t *testing.T) {
	release := make(chan struct{})
	s := Go(0, func(emit func(int) bool) error {
		<-release
		return errors.Internal("late")
	})

	if err := s.Err(); err != nil {
		t.Errorf("expected nil error while running, got %v", err)
	}
	close(release)
	waitDone(t, s.Done())
	if !errors.Is(s.Err(), errors.ErrCodeInternal) {
		t.Errorf("expected INTERNAL after finish, got %v", s.Err())
	}
}

func TestStream_ErrAfterClose(t *testing.T) {
	release := make(chan struct{})
	s := Go(0, func(emit func(int) bool) error {
		<-release
		if emit(1) {
			return nil
		}
		return errors.Unavailable(nil)
	})

	s.Close()
	close(release)
	waitDone(t, s.Done())
	if !errors.Is(s.Err(), errors.ErrCodeUnavailable) {
		t.Errorf("expected the producer's UNAVAILABLE after Close, got %v", s.Err())
	}
}

func TestStream_Panic(t *testing.T) {
	s := Go(DefaultBuffer, func(emit func(int) bool) error {
		emit(1)
		panic("producer exploded")
	})

	items, err := s.Collect(context.Background())
	if len(items) != 1 {
		t.Errorf("expected the item emitted before the panic, got %v", items)
	}
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("expected CANCELED, got %v", err)
	}
	if cause := errors.Cause(err); errors.Code(cause) != errors.ErrCodePanic {
		t.Errorf("expected a PANIC cause carrying the panic value, got %v", cause)
	}
}

func TestStream_Goexit(t *testing.T) {
	s := Go(DefaultBuffer, func(emit func(int) bool) error {
		runtime.Goexit()
		return nil
	})

	waitDone(t, s.Done())
	if !errors.Is(s.Err(), errors.ErrCodeCanceled) {
		t.Errorf("expected CANCELED, got %v", s.Err())
	}
}

func TestStream_CollectContextEnds(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	s := Go(DefaultBuffer, func(emit func(int) bool) error {
		emit(1)
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	items, err := s.Collect(ctx)
	if len(items) != 1 {
		t.Errorf("expected 1 item before the deadline, got %v", items)
	}
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("expected CANCELED, got %v", err)
	}
}

func TestStream_CollectAfterFinishDrainsBuffer(t *testing.T) {
	for run := 0; run < 50; run++ {
		s := Go(DefaultBuffer, func(emit func(int) bool) error {
			for i := 0; i < 10; i++ {
				emit(i)
			}
			return nil
		})
		waitDone(t, s.Done())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		items, err := s.Collect(ctx)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
		if len(items) != 10 {
			t.Fatalf("run %d: expected all 10 buffered items, got %v", run, items)
		}
		for i, v := range items {
			if v != i {
				t.Fatalf("run %d: item %d = %d, out of order", run, i, v)
			}
		}
	}
}

func TestStream_CollectAfterFailedFinish(t *testing.T) {
	want := errors.Unavailable(nil)
	s := Go(DefaultBuffer, func(emit func(int) bool) error {
		emit(1)
		return want
	})
	waitDone(t, s.Done())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := s.Collect(ctx)
	if len(items) != 1 {
		t.Errorf("expected the buffered item, got %v", items)
	}
	if err != want {
		t.Errorf("expected the producer error, got %v", err)
	}
}

func TestEmpty(t *testing.T) {
	want := errors.InvalidInput("query is empty")
	s := Empty[int](want)

	if _, ok := <-s.C(); ok {
		t.Error("expected closed channel")
	}
	if s.Err() != want {
		t.Errorf("expected %v, got %v", want, s.Err())
	}
	s.Close()
	s.Close()
}
