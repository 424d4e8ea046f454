// Package tasks turns blocking calls into values a caller can wait on or
// consume at its own pace.
//
// A Future holds the single result of a function started with Spawn:
//
//	f := tasks.Spawn(func() ([]float32, error) {
//	    return embed(text)
//	})
//	vec, err := f.Await(ctx)
//
// A Stream carries the items of a producer started with Go through a
// bounded channel. The producer blocks when the buffer is full and learns
// that the consumer has gone away when emit returns false:
//
//	s := tasks.Go(16, func(emit func(Item) bool) error {
//	    for _, it := range items {
//	        if !emit(it) {
//	            return nil
//	        }
//	    }
//	    return nil
//	})
//	defer s.Close()
//	for it := range s.C() {
//	    ...
//	}
//	if err := s.Err(); err != nil {
//	    ...
//	}
//
// # Cancellation
//
// Work that has started is never interrupted. Await returns early when its
// context ends, but the function keeps running and its result is dropped.
// Closing a Stream only stops further items from being delivered.
//
// # Abnormal termination
//
// A function or producer that panics or calls runtime.Goexit resolves with
// a CANCELED error instead of leaving its waiters blocked.
package tasks
