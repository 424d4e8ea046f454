package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter tracks the embedding and rerank token budgets of one client.
// It is safe for concurrent use; each pool has its own lock.
type Limiter struct {
	pools      map[Pool]*window // fixed at construction, read-only afterwards
	nowFunc    func() time.Time
	sleep      SleepFunc
	accounting Accounting
	pacer      *Pacer
	onWait     WaitHook
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Used by tests to move time explicitly.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.nowFunc = now
	}
}

// WithSleep replaces the function Admit uses to wait.
func WithSleep(sleep SleepFunc) Option {
	return func(l *Limiter) {
		l.sleep = sleep
	}
}

// WithAccounting selects how Admit charges calls. Default: AccountingReserve.
func WithAccounting(a Accounting) Option {
	return func(l *Limiter) {
		if a.Valid() {
			l.accounting = a
		}
	}
}

// WithPacer makes Admit wait on a request pacer before the token budget.
func WithPacer(p *Pacer) Option {
	return func(l *Limiter) {
		l.pacer = p
	}
}

// WithWaitHook registers a callback invoked before every forced wait.
func WithWaitHook(hook WaitHook) Option {
	return func(l *Limiter) {
		l.onWait = hook
	}
}

// NewLimiter creates a limiter with one window per pool. Windows open at
// construction time.
func NewLimiter(limits Limits, opts ...Option) *Limiter {
	l := &Limiter{
		nowFunc:    time.Now,
		sleep:      sleepContext,
		accounting: AccountingReserve,
	}
	for _, opt := range opts {
		opt(l)
	}

	now := l.nowFunc()
	l.pools = map[Pool]*window{
		PoolEmbedding: newWindow(limits.EmbeddingTokens, limits.Window, now),
		PoolRerank:    newWindow(limits.RerankTokens, limits.Window, now),
	}
	return l
}

// Accounting returns the accounting mode used by Admit.
func (l *Limiter) Accounting() Accounting {
	return l.accounting
}

// Check returns how long a call estimated at estimate tokens must wait
// before it fits the pool's current window. Zero means go now. The estimate
// is not charged; record actual usage with Update once the call completes.
// Unknown pools never wait.
func (l *Limiter) Check(pool Pool, estimate int) time.Duration {
	w, ok := l.pools[pool]
	if !ok {
		return 0
	}
	return w.check(l.nowFunc(), estimate)
}

// Update charges the actual token usage reported by the provider.
func (l *Limiter) Update(pool Pool, actual int) {
	w, ok := l.pools[pool]
	if !ok {
		return
	}
	w.add(l.nowFunc(), actual)
}

// Reserve charges estimate against the pool if it fits and returns a
// Reservation to settle with the actual usage. If it does not fit, Reserve
// returns the wait and a nil Reservation.
func (l *Limiter) Reserve(pool Pool, estimate int) (time.Duration, *Reservation) {
	w, ok := l.pools[pool]
	if !ok {
		return 0, &Reservation{estimate: estimate}
	}
	wait, epoch := w.reserve(l.nowFunc(), estimate)
	if wait > 0 {
		return wait, nil
	}
	return 0, &Reservation{w: w, epoch: epoch, estimate: estimate}
}

// Snapshot returns the current state of a pool.
func (l *Limiter) Snapshot(pool Pool) Capacity {
	w, ok := l.pools[pool]
	if !ok {
		return Capacity{Pool: pool}
	}
	return w.snapshot(l.nowFunc(), pool)
}

// SetLimit reconfigures a pool. The current window and its usage are kept;
// a length <= 0 keeps the current length.
func (l *Limiter) SetLimit(pool Pool, limit int, length time.Duration) {
	if w, ok := l.pools[pool]; ok {
		w.configure(limit, length)
	}
}

// Admit blocks until the pool lets a call of the given estimate through and
// returns a Ticket to settle once the call completes.
//
// In AccountingCheck mode the pool is checked once and, if needed, Admit
// sleeps for the returned wait without checking again. In AccountingReserve
// mode Admit keeps reserving until the estimate is charged.
func (l *Limiter) Admit(ctx context.Context, pool Pool, estimate int) (*Ticket, error) {
	if err := l.pacer.Wait(ctx, pool); err != nil {
		return nil, err
	}

	if l.accounting == AccountingCheck {
		if wait := l.Check(pool, estimate); wait > 0 {
			if err := l.wait(ctx, pool, wait, estimate); err != nil {
				return nil, err
			}
		}
		return &Ticket{l: l, pool: pool}, nil
	}

	for {
		wait, res := l.Reserve(pool, estimate)
		if res != nil {
			return &Ticket{l: l, pool: pool, res: res}, nil
		}
		if err := l.wait(ctx, pool, wait, estimate); err != nil {
			return nil, err
		}
	}
}

func (l *Limiter) wait(ctx context.Context, pool Pool, wait time.Duration, estimate int) error {
	if l.onWait != nil {
		l.onWait(pool, wait, estimate)
	}
	return l.sleep(ctx, wait)
}

// Reservation is an estimate already charged against a pool.
type Reservation struct {
	w        *window
	epoch    uint64
	estimate int
	once     sync.Once
}

// Commit replaces the reserved estimate with the actual usage. Only the
// first Commit or Cancel has an effect. If the window the estimate was
// charged in has already rolled, the correction is dropped.
func (r *Reservation) Commit(actual int) {
	r.once.Do(func() {
		if r.w != nil {
			r.w.adjust(r.epoch, actual-r.estimate)
		}
	})
}

// Cancel refunds the reserved estimate.
func (r *Reservation) Cancel() {
	r.Commit(0)
}

// Ticket is the permission Admit hands out for one call.
type Ticket struct {
	l    *Limiter
	pool Pool
	res  *Reservation
}

// Settle records the actual usage of the admitted call.
func (t *Ticket) Settle(actual int) {
	if t.res != nil {
		t.res.Commit(actual)
		return
	}
	t.l.Update(t.pool, actual)
}

// Release is called when the admitted call failed. A reserved estimate is
// refunded; in check mode nothing was charged, so nothing changes.
func (t *Ticket) Release() {
	if t.res != nil {
		t.res.Cancel()
	}
}
