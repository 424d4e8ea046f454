// Package ratelimit budgets provider tokens for the two independently
// limited call classes, embedding and rerank.
//
// Each pool is a fixed-length window with a token limit. Callers ask how
// long they must wait before sending, and report the provider's actual
// usage afterwards:
//
//	limiter := ratelimit.NewLimiter(ratelimit.Limits{
//	    EmbeddingTokens: 3_000_000,
//	    RerankTokens:    2_000_000,
//	    Window:          time.Minute,
//	})
//
//	if wait := limiter.Check(ratelimit.PoolRerank, estimate); wait > 0 {
//	    time.Sleep(wait)
//	}
//	resp, err := send(req)
//	limiter.Update(ratelimit.PoolRerank, resp.Usage.TotalTokens)
//
// # Windows
//
// A window that has lasted its full length is replaced by a fresh one on
// the next Check, Update or Reserve. The call that opens a new window is
// always let through. Otherwise a call fits when used + estimate <= limit,
// and the wait is the time left in the current window.
//
// # Accounting
//
// Check never charges the estimate, so callers that pass Check before any
// of them has called Update all see the same usage and can overshoot the
// limit together. Reserve charges the estimate up front and the returned
// Reservation swaps it for the actual usage on Commit. Admit wraps either
// mode (see AccountingCheck and AccountingReserve) together with the
// optional request Pacer and the sleep.
//
// The limiter never fails. At worst it returns a wait that is longer than
// necessary.
package ratelimit
