package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer caps requests per minute for each pool, independently of the token
// budget. It uses a token bucket whose burst equals the per-minute cap.
// A nil *Pacer never waits.
type Pacer struct {
	limiters map[Pool]*rate.Limiter
}

// NewPacer creates a pacer from per-pool requests-per-minute caps.
// Pools with a cap <= 0 are not paced.
func NewPacer(rpm map[Pool]int) *Pacer {
	p := &Pacer{limiters: make(map[Pool]*rate.Limiter, len(rpm))}
	for pool, n := range rpm {
		if n <= 0 {
			continue
		}
		p.limiters[pool] = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
	return p
}

// Wait blocks until the pool may send another request or ctx ends.
func (p *Pacer) Wait(ctx context.Context, pool Pool) error {
	if p == nil {
		return nil
	}
	lim, ok := p.limiters[pool]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Allow reports whether a request may be sent now, consuming a slot if so.
func (p *Pacer) Allow(pool Pool) bool {
	if p == nil {
		return true
	}
	lim, ok := p.limiters[pool]
	if !ok {
		return true
	}
	return lim.Allow()
}
