// Package gateway is the entry point for embedding and rerank calls.
//
// A Gateway owns one rate limiter shared by every call made through it,
// so concurrent callers draw from the same embedding and rerank budgets.
// Every operation returns at once; the call itself runs in the background
// and its result is collected through a tasks.Future or tasks.Stream.
//
//	cfg := config.Default()
//	cfg.API.APIKey = key
//	gw, err := gateway.New(cfg)
//	if err != nil {
//	    return err
//	}
//	vec, err := gw.Embed(ctx, "hello").Await(ctx)
//
// Calls are never interrupted once started. Canceling ctx or closing a
// stream only stops the caller from waiting.
package gateway

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vinayprograms/voyagekit/config"
	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/logging"
	"github.com/vinayprograms/voyagekit/ratelimit"
	"github.com/vinayprograms/voyagekit/rerank"
	"github.com/vinayprograms/voyagekit/tasks"
	"github.com/vinayprograms/voyagekit/telemetry"
	"github.com/vinayprograms/voyagekit/vector"
	"github.com/vinayprograms/voyagekit/voyage"
)

// Gateway sends embedding and rerank calls through one shared limiter.
// It is safe for concurrent use.
type Gateway struct {
	transport voyage.Transport
	limiter   *ratelimit.Limiter
	reranker  *rerank.Reranker
	logger    *logging.Logger
	tracer    *telemetry.Tracer

	model      voyage.EmbeddingModel
	inputType  voyage.InputType
	truncation *bool
	buffer     int
}

// Option configures a Gateway.
type Option func(*options)

type options struct {
	transport voyage.Transport
	logger    *logging.Logger
	limiter   *ratelimit.Limiter
	sleep     ratelimit.SleepFunc
	tracer    *telemetry.Tracer
}

// WithTransport replaces the HTTP transport, typically with a
// voyage.MockTransport.
func WithTransport(t voyage.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithLogger sets the logger. Default: a logger at the configured level.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLimiter supplies a limiter, for example one shared between gateways.
// The [limits] section of the config is then ignored.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithTracer sets the tracer for call spans. Default: a tracer on the
// global OpenTelemetry provider.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithSleep replaces how the built-in limiter waits.
func WithSleep(sleep ratelimit.SleepFunc) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// New creates a gateway from cfg. Defaults are applied to cfg before it is
// validated. Without WithTransport, cfg.API.APIKey is required.
func New(cfg config.Config, opts ...Option) (*Gateway, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.New()
		logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	}

	transport := o.transport
	if transport == nil {
		t, err := voyage.NewHTTPTransport(voyage.HTTPConfig{
			APIKey:  cfg.API.APIKey,
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		transport = t
	}
	if cfg.API.Breaker.Enabled {
		bc := cfg.Breaker()
		bc.Logger = logger
		transport = voyage.NewBreakerTransport(transport, bc)
	}

	limiter := o.limiter
	if limiter == nil {
		lopts := []ratelimit.Option{
			ratelimit.WithAccounting(ratelimit.Accounting(cfg.Limits.Accounting)),
			ratelimit.WithPacer(ratelimit.NewPacer(cfg.RPM())),
			ratelimit.WithWaitHook(func(pool ratelimit.Pool, wait time.Duration, estimate int) {
				logger.RateLimitWait(pool.String(), wait, estimate)
			}),
		}
		if o.sleep != nil {
			lopts = append(lopts, ratelimit.WithSleep(o.sleep))
		}
		limiter = ratelimit.NewLimiter(cfg.RateLimits(), lopts...)
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = telemetry.NewTracer()
	}

	reranker := rerank.New(transport, limiter, rerank.Options{
		Model:      voyage.RerankModel(cfg.API.RerankModel),
		TopK:       cfg.API.RerankTopK,
		Truncation: cfg.API.Truncation,
		Buffer:     cfg.Stream.Buffer,
		Logger:     logger,
		Tracer:     tracer,
	})

	return &Gateway{
		transport:  transport,
		limiter:    limiter,
		reranker:   reranker,
		logger:     logger.WithComponent("gateway"),
		tracer:     tracer,
		model:      voyage.EmbeddingModel(cfg.API.EmbeddingModel),
		inputType:  voyage.InputType(cfg.API.InputType),
		truncation: cfg.API.Truncation,
		buffer:     cfg.Stream.Buffer,
	}, nil
}

// Limiter returns the gateway's limiter for direct Check and Update calls.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Embed computes the embedding of one text.
func (g *Gateway) Embed(ctx context.Context, text string) *tasks.Future[[]float32] {
	ctx = context.WithoutCancel(ctx)
	texts := []string{text}

	return tasks.Spawn(func() ([]float32, error) {
		resp, err := g.embed(ctx, "embed", texts)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, errors.MalformedResponse("no embedding returned")
		}
		return resp.Data[0].Embedding, nil
	})
}

// EmbedBatch computes the embeddings of texts with one call. Vectors are
// returned in input order. An empty batch resolves immediately without a
// call.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) *tasks.Future[[][]float32] {
	if len(texts) == 0 {
		return tasks.Resolved([][]float32{})
	}
	ctx = context.WithoutCancel(ctx)
	texts = slices.Clone(texts)

	return tasks.Spawn(func() ([][]float32, error) {
		resp, err := g.embed(ctx, "embed_batch", texts)
		if err != nil {
			return nil, err
		}
		return inputOrder(resp.Data, len(texts))
	})
}

// EmbedStream is EmbedBatch with the vectors delivered one at a time.
func (g *Gateway) EmbedStream(ctx context.Context, texts []string) *tasks.Stream[[]float32] {
	if len(texts) == 0 {
		return tasks.Empty[[]float32](nil)
	}
	ctx = context.WithoutCancel(ctx)
	texts = slices.Clone(texts)

	return tasks.Go(g.buffer, func(emit func([]float32) bool) error {
		resp, err := g.embed(ctx, "embed_stream", texts)
		if err != nil {
			return err
		}
		vectors, err := inputOrder(resp.Data, len(texts))
		if err != nil {
			return err
		}
		for i, v := range vectors {
			if !emit(v) {
				g.logger.StreamStopped("embed_stream", i, len(vectors))
				return nil
			}
		}
		return nil
	})
}

// RerankStream ranks documents against query; see rerank.Reranker.Stream.
func (g *Gateway) RerankStream(ctx context.Context, query string, documents []string) *tasks.Stream[rerank.RankedItem] {
	return g.reranker.Stream(ctx, query, documents)
}

// MostSimilar returns the document ranked highest for query; see
// rerank.Reranker.Top1.
func (g *Gateway) MostSimilar(ctx context.Context, query string, documents []string) *tasks.Future[rerank.RankedItem] {
	return g.reranker.Top1(ctx, query, documents)
}

// Similarity embeds a and b with one call and returns their cosine
// similarity.
func (g *Gateway) Similarity(ctx context.Context, a, b string) *tasks.Future[float64] {
	ctx = context.WithoutCancel(ctx)
	texts := []string{a, b}

	return tasks.Spawn(func() (float64, error) {
		resp, err := g.embed(ctx, "similarity", texts)
		if err != nil {
			return 0, err
		}
		vectors, err := inputOrder(resp.Data, len(texts))
		if err != nil {
			return 0, err
		}
		return vector.CosineSimilarity(vectors[0], vectors[1]), nil
	})
}

func (g *Gateway) embed(ctx context.Context, op string, texts []string) (resp *voyage.EmbeddingResponse, err error) {
	estimate := voyage.EstimateEmbeddingTokens(texts)

	ctx, span := g.tracer.StartCallSpan(ctx, op)
	spanOpts := telemetry.CallSpanOptions{
		Model:    string(g.model),
		Pool:     ratelimit.PoolEmbedding.String(),
		Estimate: estimate,
		Items:    len(texts),
	}
	defer func() {
		if resp != nil {
			spanOpts.Tokens = resp.Usage.TotalTokens
		}
		g.tracer.EndCallSpan(span, spanOpts, err)
	}()

	waitStart := time.Now()
	ticket, err := g.limiter.Admit(ctx, ratelimit.PoolEmbedding, estimate)
	spanOpts.Wait = time.Since(waitStart)
	if err != nil {
		return nil, errors.Wrap(err, "rate limit wait interrupted")
	}

	g.logger.CallStart(op, estimate)
	start := time.Now()

	resp, err = g.transport.Embed(ctx, &voyage.EmbeddingRequest{
		Input:      texts,
		Model:      g.model,
		InputType:  g.inputType,
		Truncation: g.truncation,
	})
	if err != nil {
		ticket.Release()
		g.logger.CallFailed(op, time.Since(start), err)
		return nil, err
	}

	ticket.Settle(resp.Usage.TotalTokens)
	g.logger.CallComplete(op, time.Since(start), resp.Usage.TotalTokens)
	return resp, nil
}

// inputOrder sorts vectors by their index field. Every input must have
// exactly one vector.
func inputOrder(data []voyage.EmbeddingData, n int) ([][]float32, error) {
	if len(data) != n {
		return nil, errors.MalformedResponse(fmt.Sprintf("expected %d embeddings, got %d", n, len(data)))
	}
	vectors := make([][]float32, n)
	seen := make([]bool, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n {
			return nil, errors.MalformedResponse(fmt.Sprintf("embedding index %d out of range for %d inputs", d.Index, n))
		}
		if seen[d.Index] {
			return nil, errors.MalformedResponse(fmt.Sprintf("duplicate embedding index %d", d.Index))
		}
		seen[d.Index] = true
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
