package ratelimit

import (
	"sync"
	"time"
)

// window is a fixed-length token counter. Each pool owns one, so pools
// never contend with each other.
type window struct {
	mu     sync.Mutex
	limit  int           // max tokens per window, <= 0 means unlimited
	length time.Duration // window length
	start  time.Time     // when the current window opened
	used   int           // tokens charged since start
	epoch  uint64        // incremented on every roll
}

func newWindow(limit int, length time.Duration, now time.Time) *window {
	if length <= 0 {
		length = DefaultWindow
	}
	return &window{
		limit:  limit,
		length: length,
		start:  now,
	}
}

// roll opens a new window if the current one has expired.
// Returns true if it did. Caller must hold mu.
func (w *window) roll(now time.Time) bool {
	if now.Sub(w.start) < w.length {
		return false
	}
	w.start = now
	w.used = 0
	w.epoch++
	return true
}

// remaining returns how long until the current window expires.
// Caller must hold mu.
func (w *window) remaining(now time.Time) time.Duration {
	return w.length - now.Sub(w.start)
}

// check reports how long a call of the given estimate must wait.
// The estimate is not charged.
func (w *window) check(now time.Time, estimate int) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit <= 0 {
		return 0
	}
	// A call that opens a new window always goes through, so an estimate
	// larger than the whole limit cannot wait forever.
	if w.roll(now) {
		return 0
	}
	if w.used+estimate <= w.limit {
		return 0
	}
	return w.remaining(now)
}

// reserve charges the estimate if it fits, returning the epoch it was
// charged in. Otherwise it returns the wait and charges nothing.
func (w *window) reserve(now time.Time, estimate int) (time.Duration, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit <= 0 {
		w.roll(now)
		w.used += estimate
		return 0, w.epoch
	}
	if w.roll(now) || w.used+estimate <= w.limit {
		w.used += estimate
		return 0, w.epoch
	}
	return w.remaining(now), 0
}

// add charges tokens to the current window, rolling it first if expired.
func (w *window) add(now time.Time, tokens int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(now)
	w.used += tokens
}

// adjust corrects a charge made in the given epoch. Corrections for a
// window that has since rolled are dropped.
func (w *window) adjust(epoch uint64, delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if epoch != w.epoch {
		return
	}
	w.used += delta
	if w.used < 0 {
		w.used = 0
	}
}

func (w *window) snapshot(now time.Time, pool Pool) Capacity {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(now)
	c := Capacity{
		Pool:        pool,
		Used:        w.used,
		WindowStart: w.start,
		Window:      w.length,
	}
	if w.limit > 0 {
		c.Limit = w.limit
		c.Remaining = w.limit - w.used
		if c.Remaining < 0 {
			c.Remaining = 0
		}
	}
	return c
}

func (w *window) configure(limit int, length time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.limit = limit
	if length > 0 {
		w.length = length
	}
}
