package voyage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/logging"
)

// BreakerConfig configures a BreakerTransport.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32        // calls let through while half-open, default 1
	Interval    time.Duration // how often closed-state counts reset, 0 = never
	Timeout     time.Duration // how long the breaker stays open, default 30s
	TripRatio   float64       // failure ratio that opens the breaker, default 0.5
	MinRequests uint32        // calls seen before the ratio applies, default 5
	Logger      *logging.Logger
}

// BreakerTransport stops sending requests after repeated transient
// failures and reports UNAVAILABLE until the service has had time to
// recover. Only retryable errors count as failures, so a bad key or bad
// input never opens the breaker.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker
}

var _ Transport = (*BreakerTransport)(nil)

// NewBreakerTransport wraps next with a circuit breaker.
func NewBreakerTransport(next Transport, cfg BreakerConfig) *BreakerTransport {
	if cfg.Name == "" {
		cfg.Name = "voyage"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TripRatio <= 0 {
		cfg.TripRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("breaker")

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.TripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsRetryable(err)
		},
	}

	return &BreakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// State returns the breaker state: closed, half-open or open.
func (b *BreakerTransport) State() string {
	return b.cb.State().String()
}

// Embed implements Transport.
func (b *BreakerTransport) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return resp.(*EmbeddingResponse), nil
}

// Rerank implements Transport.
func (b *BreakerTransport) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Rerank(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return resp.(*RerankResponse), nil
}

func breakerError(err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Unavailable(err)
	}
	return err
}
