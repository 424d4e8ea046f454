package voyage

import (
	"context"
	"sync"
)

// MockTransport is a Transport for tests. By default it returns the
// configured responses; EmbedFunc and RerankFunc override that.
type MockTransport struct {
	mu sync.Mutex

	embedResp  *EmbeddingResponse
	rerankResp *RerankResponse
	err        error

	embedCalls  int
	rerankCalls int
	lastEmbed   *EmbeddingRequest
	lastRerank  *RerankRequest

	// EmbedFunc can be overridden for custom behavior
	EmbedFunc func(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// RerankFunc can be overridden for custom behavior
	RerankFunc func(ctx context.Context, req *RerankRequest) (*RerankResponse, error)
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock that answers every call with an empty
// response.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SetEmbedResponse sets the response returned by Embed.
func (m *MockTransport) SetEmbedResponse(resp *EmbeddingResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedResp = resp
}

// SetRerankResponse sets the response returned by Rerank.
func (m *MockTransport) SetRerankResponse(resp *RerankResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rerankResp = resp
}

// SetError makes every call fail with err.
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// EmbedCalls returns the number of Embed calls made.
func (m *MockTransport) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// RerankCalls returns the number of Rerank calls made.
func (m *MockTransport) RerankCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rerankCalls
}

// LastEmbed returns the last embedding request.
func (m *MockTransport) LastEmbed() *EmbeddingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEmbed
}

// LastRerank returns the last rerank request.
func (m *MockTransport) LastRerank() *RerankRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRerank
}

// Embed implements Transport.
func (m *MockTransport) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	m.mu.Lock()
	m.embedCalls++
	m.lastEmbed = req
	fn, resp, err := m.EmbedFunc, m.embedResp, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &EmbeddingResponse{}, nil
	}
	return resp, nil
}

// Rerank implements Transport.
func (m *MockTransport) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	m.mu.Lock()
	m.rerankCalls++
	m.lastRerank = req
	fn, resp, err := m.RerankFunc, m.rerankResp, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &RerankResponse{}, nil
	}
	return resp, nil
}
