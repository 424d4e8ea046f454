package gateway

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vinayprograms/voyagekit/config"
	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/logging"
	"github.com/vinayprograms/voyagekit/ratelimit"
	"github.com/vinayprograms/voyagekit/telemetry"
	"github.com/vinayprograms/voyagekit/voyage"
)

// fakeClock drives both the limiter clock and its sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

func newTestGateway(t *testing.T, mock *voyage.MockTransport, limits ratelimit.Limits) (*Gateway, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	limiter := ratelimit.NewLimiter(limits,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleep(clock.Sleep),
	)
	gw, err := New(config.Default(),
		WithTransport(mock),
		WithLimiter(limiter),
		WithLogger(logging.Nop()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return gw, clock
}

// echoEmbeddings answers with one vector per input, in reverse order, each
// vector holding the input's index.
func echoEmbeddings(ctx context.Context, req *voyage.EmbeddingRequest) (*voyage.EmbeddingResponse, error) {
	resp := &voyage.EmbeddingResponse{Usage: voyage.Usage{TotalTokens: 10 * len(req.Input)}}
	for i := len(req.Input) - 1; i >= 0; i-- {
		resp.Data = append(resp.Data, voyage.EmbeddingData{
			Embedding: []float32{float32(i), 1},
			Index:     i,
		})
	}
	return resp, nil
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(config.Default(), WithLogger(logging.Nop())); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT without an api key, got %v", err)
	}

	cfg := config.Default()
	cfg.API.APIKey = "pa-test"
	if _, err := New(cfg, WithLogger(logging.Nop())); err != nil {
		t.Errorf("unexpected error with api key: %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.Accounting = "optimistic"

	if _, err := New(cfg, WithTransport(voyage.NewMockTransport())); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNew_LimiterFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.RerankTokens = 500
	cfg.Limits.Accounting = "check"

	gw, err := New(cfg, WithTransport(voyage.NewMockTransport()), WithLogger(logging.Nop()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if gw.Limiter().Accounting() != ratelimit.AccountingCheck {
		t.Errorf("expected check accounting, got %v", gw.Limiter().Accounting())
	}
	if limit := gw.Limiter().Snapshot(ratelimit.PoolRerank).Limit; limit != 500 {
		t.Errorf("expected rerank limit 500, got %d", limit)
	}
	if limit := gw.Limiter().Snapshot(ratelimit.PoolEmbedding).Limit; limit != config.DefaultEmbeddingTokens {
		t.Errorf("expected default embedding limit, got %d", limit)
	}
}

func TestEmbed(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{EmbeddingTokens: 1000})

	vec, err := gw.Embed(context.Background(), "hello").Await(context.Background())
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0 {
		t.Errorf("unexpected vector %v", vec)
	}

	req := mock.LastEmbed()
	if req.Model != voyage.Voyage3Large || len(req.Input) != 1 || req.Input[0] != "hello" {
		t.Errorf("unexpected request %+v", req)
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolEmbedding).Used; used != 10 {
		t.Errorf("expected embedding usage 10, got %d", used)
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolRerank).Used; used != 0 {
		t.Errorf("rerank pool should be untouched, got %d", used)
	}
}

func TestEmbed_EmptyData(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetEmbedResponse(&voyage.EmbeddingResponse{Usage: voyage.Usage{TotalTokens: 2}})
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	_, err := gw.Embed(context.Background(), "x").Await(context.Background())
	if !errors.Is(err, errors.ErrCodeMalformedResponse) {
		t.Errorf("expected MALFORMED_RESPONSE, got %v", err)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	mock := voyage.NewMockTransport()
	gw, clock := newTestGateway(t, mock, ratelimit.Limits{EmbeddingTokens: 1})
	gw.Limiter().Update(ratelimit.PoolEmbedding, 1)

	vectors, err := gw.EmbedBatch(context.Background(), nil).Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors == nil || len(vectors) != 0 {
		t.Errorf("expected an empty, non-nil result, got %v", vectors)
	}
	if mock.EmbedCalls() != 0 {
		t.Errorf("empty batch must not reach the transport, got %d calls", mock.EmbedCalls())
	}
	if clock.Sleeps() != 0 {
		t.Errorf("empty batch must not wait on the limiter")
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolEmbedding).Used; used != 1 {
		t.Errorf("empty batch must not change usage, got %d", used)
	}
}

func TestEmbedBatch_OrderedByIndex(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	texts := []string{"a", "b", "c", "d"}
	vectors, err := gw.EmbedBatch(context.Background(), texts).Await(context.Background())
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d belongs to input %v", i, v[0])
		}
	}
	if mock.EmbedCalls() != 1 {
		t.Errorf("expected one call for the whole batch, got %d", mock.EmbedCalls())
	}
}

func TestEmbedBatch_MalformedIndexes(t *testing.T) {
	tests := []struct {
		name string
		data []voyage.EmbeddingData
	}{
		{"too few", []voyage.EmbeddingData{{Index: 0}}},
		{"out of range", []voyage.EmbeddingData{{Index: 0}, {Index: 2}}},
		{"duplicate", []voyage.EmbeddingData{{Index: 1}, {Index: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := voyage.NewMockTransport()
			mock.SetEmbedResponse(&voyage.EmbeddingResponse{Data: tt.data})
			gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

			_, err := gw.EmbedBatch(context.Background(), []string{"a", "b"}).Await(context.Background())
			if !errors.Is(err, errors.ErrCodeMalformedResponse) {
				t.Errorf("expected MALFORMED_RESPONSE, got %v", err)
			}
		})
	}
}

func TestEmbedBatch_TransportError(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetError(errors.Forbidden("model not enabled"))
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{EmbeddingTokens: 1000})

	_, err := gw.EmbedBatch(context.Background(), []string{"a"}).Await(context.Background())
	if !errors.Is(err, errors.ErrCodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if errors.ResponseBody(err) != "model not enabled" {
		t.Errorf("expected body to be preserved, got %q", errors.ResponseBody(err))
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolEmbedding).Used; used != 0 {
		t.Errorf("failed call should refund its reservation, got usage %d", used)
	}
}

func TestEmbedStream(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	vectors, err := gw.EmbedStream(context.Background(), []string{"a", "b", "c"}).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}

	empty, err := gw.EmbedStream(context.Background(), nil).Collect(context.Background())
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty stream, got %v, %v", empty, err)
	}
	if mock.EmbedCalls() != 1 {
		t.Errorf("empty stream must not reach the transport")
	}
}

func TestEmbedStream_Close(t *testing.T) {
	const total = 1000
	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	texts := make([]string, total)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	s := gw.EmbedStream(context.Background(), texts)
	if _, ok := s.Next(context.Background()); !ok {
		t.Fatalf("expected a first vector, got %v", s.Err())
	}
	s.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop after Close")
	}
	if s.Err() != nil {
		t.Errorf("unexpected error: %v", s.Err())
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolEmbedding).Used; used != 10*total {
		t.Errorf("expected full usage recorded, got %d", used)
	}
}

func TestRerankStream(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetRerankResponse(&voyage.RerankResponse{
		Data: []voyage.RerankResult{
			{Index: 2, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.5},
			{Index: 1, RelevanceScore: 0.2},
		},
		Usage: voyage.Usage{TotalTokens: 8},
	})
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{RerankTokens: 100})

	items, err := gw.RerankStream(context.Background(), "q", []string{"A", "B", "C"}).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ""
	for _, it := range items {
		got += it.Document
	}
	if got != "CAB" {
		t.Errorf("expected order CAB, got %s", got)
	}
	if mock.LastRerank().Model != voyage.Rerank2 {
		t.Errorf("expected default rerank model, got %s", mock.LastRerank().Model)
	}
	if used := gw.Limiter().Snapshot(ratelimit.PoolRerank).Used; used != 8 {
		t.Errorf("expected rerank usage 8, got %d", used)
	}
}

func TestMostSimilar(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetRerankResponse(&voyage.RerankResponse{})
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	_, err := gw.MostSimilar(context.Background(), "q", []string{"A"}).Await(context.Background())
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetEmbedResponse(&voyage.EmbeddingResponse{
		Data: []voyage.EmbeddingData{
			{Embedding: []float32{0, 1}, Index: 1},
			{Embedding: []float32{1, 0}, Index: 0},
		},
	})
	gw, _ := newTestGateway(t, mock, ratelimit.Limits{})

	score, err := gw.Similarity(context.Background(), "a", "b").Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score) > 1e-9 {
		t.Errorf("expected orthogonal vectors to score 0, got %v", score)
	}
}

func TestLimiterSharedAcrossCalls(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	gw, clock := newTestGateway(t, mock, ratelimit.Limits{EmbeddingTokens: 25, Window: time.Minute})

	// Each call is estimated at 3 tokens and reports 10, so the fourth call
	// no longer fits the 25 token window.
	for i := 0; i < 4; i++ {
		if _, err := gw.Embed(context.Background(), "abcd").Await(context.Background()); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if clock.Sleeps() != 1 {
		t.Errorf("expected exactly one wait, got %d", clock.Sleeps())
	}
}

func TestBreakerFromConfig(t *testing.T) {
	mock := voyage.NewMockTransport()
	mock.SetError(errors.Network(context.DeadlineExceeded))

	cfg := config.Default()
	cfg.API.Breaker.Enabled = true
	cfg.API.Breaker.MinRequests = 2
	cfg.API.Breaker.Timeout = time.Hour

	gw, err := New(cfg, WithTransport(mock), WithLogger(logging.Nop()), WithLimiter(ratelimit.NewLimiter(ratelimit.Limits{})))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		gw.Embed(context.Background(), "x").Await(context.Background())
	}
	_, err = gw.Embed(context.Background(), "x").Await(context.Background())
	if !errors.Is(err, errors.ErrCodeUnavailable) {
		t.Errorf("expected UNAVAILABLE once the breaker opened, got %v", err)
	}
	if mock.EmbedCalls() != 2 {
		t.Errorf("expected 2 calls to reach the transport, got %d", mock.EmbedCalls())
	}
}

func TestCallSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := telemetry.NewTracerFromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	mock := voyage.NewMockTransport()
	mock.EmbedFunc = echoEmbeddings
	mock.SetRerankResponse(&voyage.RerankResponse{
		Data:  []voyage.RerankResult{{Index: 0, RelevanceScore: 0.7}},
		Usage: voyage.Usage{TotalTokens: 4},
	})

	gw, err := New(config.Default(),
		WithTransport(mock),
		WithLimiter(ratelimit.NewLimiter(ratelimit.Limits{})),
		WithLogger(logging.Nop()),
		WithTracer(tracer),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if _, err := gw.EmbedBatch(ctx, []string{"a", "b"}).Await(ctx); err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if _, err := gw.MostSimilar(ctx, "q", []string{"A"}).Await(ctx); err != nil {
		t.Fatalf("MostSimilar failed: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	want := map[string]int64{"voyage.embed_batch": 20, "voyage.rerank": 4}
	for _, s := range spans {
		tokens, ok := want[s.Name()]
		if !ok {
			t.Errorf("unexpected span %s", s.Name())
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "voyage.tokens.actual" && kv.Value.AsInt64() != tokens {
				t.Errorf("%s tokens = %d, want %d", s.Name(), kv.Value.AsInt64(), tokens)
			}
		}
	}
}

func TestRerankOptionsFromConfig(t *testing.T) {
	noTruncation := false
	tests := []struct {
		name     string
		topK     int
		wantTopK int
	}{
		{"top k applied", 2, 2},
		{"top k clamped to document count", 5, 3},
		{"every document", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := voyage.NewMockTransport()
			mock.EmbedFunc = echoEmbeddings
			mock.SetRerankResponse(&voyage.RerankResponse{
				Data: []voyage.RerankResult{{Index: 1, RelevanceScore: 0.7}},
			})

			cfg := config.Default()
			cfg.API.RerankTopK = tt.topK
			cfg.API.Truncation = &noTruncation

			gw, err := New(cfg,
				WithTransport(mock),
				WithLimiter(ratelimit.NewLimiter(ratelimit.Limits{})),
				WithLogger(logging.Nop()),
			)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			ctx := context.Background()
			if _, err := gw.RerankStream(ctx, "q", []string{"A", "B", "C"}).Collect(ctx); err != nil {
				t.Fatalf("RerankStream failed: %v", err)
			}
			req := mock.LastRerank()
			if req.TopK != tt.wantTopK {
				t.Errorf("top_k = %d, want %d", req.TopK, tt.wantTopK)
			}
			if req.Truncation == nil || *req.Truncation {
				t.Errorf("expected truncation false on rerank, got %v", req.Truncation)
			}

			if _, err := gw.Embed(ctx, "x").Await(ctx); err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			if tr := mock.LastEmbed().Truncation; tr == nil || *tr {
				t.Errorf("expected truncation false on embed, got %v", tr)
			}
		})
	}
}
