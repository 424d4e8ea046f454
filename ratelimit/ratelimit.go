package ratelimit

import (
	"context"
	"time"
)

// Pool identifies an independently limited class of provider calls.
type Pool string

const (
	// PoolEmbedding budgets embedding tokens.
	PoolEmbedding Pool = "embedding"

	// PoolRerank budgets rerank tokens.
	PoolRerank Pool = "rerank"
)

// Pools lists every pool a Limiter manages.
var Pools = []Pool{PoolEmbedding, PoolRerank}

// String returns the pool name.
func (p Pool) String() string {
	return string(p)
}

// Accounting selects how admitted calls are charged against a pool.
type Accounting string

const (
	// AccountingReserve adds the estimate to the window when a call is
	// admitted and corrects it with the actual usage afterwards. Concurrent
	// callers cannot all pass on the same stale total.
	AccountingReserve Accounting = "reserve"

	// AccountingCheck only checks the estimate and records actual usage
	// after the call. Callers admitted in the gap between Check and Update
	// can push a window past its limit.
	AccountingCheck Accounting = "check"
)

// Valid reports whether a is a known accounting mode.
func (a Accounting) Valid() bool {
	return a == AccountingReserve || a == AccountingCheck
}

// Limits configures the token budget of both pools.
// A limit <= 0 leaves that pool unlimited.
type Limits struct {
	EmbeddingTokens int
	RerankTokens    int
	Window          time.Duration
}

// DefaultWindow is the provider's accounting window.
const DefaultWindow = time.Minute

// Capacity describes the current state of one pool.
type Capacity struct {
	// Pool is the pool being described.
	Pool Pool

	// Limit is the maximum number of tokens per window. 0 means unlimited.
	Limit int

	// Used is the number of tokens charged in the current window.
	Used int

	// Remaining is Limit - Used, floored at zero.
	Remaining int

	// WindowStart is when the current window opened.
	WindowStart time.Time

	// Window is the window length.
	Window time.Duration
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// WaitHook observes every forced wait before it starts.
type WaitHook func(pool Pool, wait time.Duration, estimate int)

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
