// Package rerank scores documents against a query with one rerank call and
// hands the results back one at a time.
//
// Results are emitted in the order the service ranked them. Each item
// carries the caller's own copy of the document the service pointed at,
// so the text is always the text that was sent, even when the service
// drops or reorders entries.
package rerank

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/logging"
	"github.com/vinayprograms/voyagekit/ratelimit"
	"github.com/vinayprograms/voyagekit/tasks"
	"github.com/vinayprograms/voyagekit/telemetry"
	"github.com/vinayprograms/voyagekit/voyage"
)

// RankedItem is one scored document.
type RankedItem struct {
	// Rank is the zero-based position in the service's ranking.
	Rank int

	// Similarity is the service's relevance score, higher is more similar.
	Similarity float64

	// Document is the input document the score belongs to.
	Document string
}

// Options configures a Reranker.
type Options struct {
	Model      voyage.RerankModel // default: voyage.DefaultRerankModel
	TopK       int                // 0 returns every document
	Truncation *bool
	Buffer     int // stream channel capacity, default tasks.DefaultBuffer
	Logger     *logging.Logger
	Tracer     *telemetry.Tracer // default: telemetry.NewTracer()
}

// Reranker sends rerank calls through a shared rate limiter.
type Reranker struct {
	transport voyage.Transport
	limiter   *ratelimit.Limiter
	opts      Options
	logger    *logging.Logger
	tracer    *telemetry.Tracer
}

// New creates a reranker. The limiter is usually shared with the embedding
// side of the same client; a nil limiter never waits.
func New(transport voyage.Transport, limiter *ratelimit.Limiter, opts Options) *Reranker {
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.Limits{})
	}
	if opts.Model == "" {
		opts.Model = voyage.DefaultRerankModel
	}
	if opts.Buffer <= 0 {
		opts.Buffer = tasks.DefaultBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewTracer()
	}
	return &Reranker{
		transport: transport,
		limiter:   limiter,
		opts:      opts,
		logger:    logger.WithComponent("rerank"),
		tracer:    tracer,
	}
}

// Stream reranks documents against query and delivers the results in
// ranked order. The call starts immediately and runs to completion even if
// ctx is canceled or the consumer closes the stream early; closing only
// stops further items from being delivered. A failed call delivers no items
// and ends the stream with the error.
func (r *Reranker) Stream(ctx context.Context, query string, documents []string) *tasks.Stream[RankedItem] {
	req, docs, err := r.request(query, documents)
	if err != nil {
		return tasks.Empty[RankedItem](err)
	}
	ctx = context.WithoutCancel(ctx)

	return tasks.Go(r.opts.Buffer, func(emit func(RankedItem) bool) error {
		items, err := r.rank(ctx, req, docs)
		if err != nil {
			return err
		}
		for i, item := range items {
			if !emit(item) {
				r.logger.StreamStopped("rerank", i, len(items))
				return nil
			}
		}
		return nil
	})
}

// Top1 returns the highest ranked document. A call that succeeds with no
// results fails with NOT_FOUND.
func (r *Reranker) Top1(ctx context.Context, query string, documents []string) *tasks.Future[RankedItem] {
	req, docs, err := r.request(query, documents)
	if err != nil {
		return tasks.Failed[RankedItem](err)
	}
	ctx = context.WithoutCancel(ctx)

	return tasks.Spawn(func() (RankedItem, error) {
		items, err := r.rank(ctx, req, docs)
		if err != nil {
			return RankedItem{}, err
		}
		if len(items) == 0 {
			return RankedItem{}, errors.NotFound("no matching documents")
		}
		return items[0], nil
	})
}

// request validates the input and builds a request over a private copy of
// the documents.
func (r *Reranker) request(query string, documents []string) (*voyage.RerankRequest, []string, error) {
	docs := slices.Clone(documents)
	topK := min(r.opts.TopK, len(docs))

	req, err := voyage.NewRerankRequest(query, docs, r.opts.Model, topK)
	if err != nil {
		r.logger.Warn("rerank rejected", map[string]interface{}{"error": err.Error()})
		return nil, nil, err
	}
	req.Truncation = r.opts.Truncation
	return req, docs, nil
}

// rank performs the call and maps each result back to its input document.
func (r *Reranker) rank(ctx context.Context, req *voyage.RerankRequest, docs []string) ([]RankedItem, error) {
	resp, err := r.call(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := correspond(resp.Data, docs)
	if err != nil {
		r.logger.Error("rerank response rejected", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return items, nil
}

func (r *Reranker) call(ctx context.Context, req *voyage.RerankRequest) (resp *voyage.RerankResponse, err error) {
	estimate := voyage.EstimateRerankTokens(req.Query, req.Documents)

	ctx, span := r.tracer.StartCallSpan(ctx, "rerank")
	spanOpts := telemetry.CallSpanOptions{
		Model:    string(req.Model),
		Pool:     ratelimit.PoolRerank.String(),
		Estimate: estimate,
		Items:    len(req.Documents),
	}
	defer func() {
		if resp != nil {
			spanOpts.Tokens = resp.Usage.TotalTokens
		}
		r.tracer.EndCallSpan(span, spanOpts, err)
	}()

	waitStart := time.Now()
	ticket, err := r.limiter.Admit(ctx, ratelimit.PoolRerank, estimate)
	spanOpts.Wait = time.Since(waitStart)
	if err != nil {
		return nil, errors.Wrap(err, "rate limit wait interrupted")
	}

	r.logger.CallStart("rerank", estimate)
	start := time.Now()

	resp, err = r.transport.Rerank(ctx, req)
	if err != nil {
		ticket.Release()
		r.logger.CallFailed("rerank", time.Since(start), err)
		return nil, err
	}

	ticket.Settle(resp.Usage.TotalTokens)
	r.logger.CallComplete("rerank", time.Since(start), resp.Usage.TotalTokens)
	return resp, nil
}

// correspond turns results into ranked items in received order. Every index
// is checked before any item is built, so a bad index yields no items.
func correspond(results []voyage.RerankResult, docs []string) ([]RankedItem, error) {
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, errors.MalformedResponse(
				fmt.Sprintf("result index %d out of range for %d documents", res.Index, len(docs)))
		}
	}

	items := make([]RankedItem, len(results))
	for i, res := range results {
		items[i] = RankedItem{
			Rank:       i,
			Similarity: res.RelevanceScore,
			Document:   docs[res.Index],
		}
	}
	return items, nil
}
