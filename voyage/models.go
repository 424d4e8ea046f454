package voyage

import (
	"strings"

	"github.com/vinayprograms/voyagekit/errors"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.voyageai.com/v1"

// EmbeddingModel names an embedding model.
type EmbeddingModel string

const (
	Voyage3Large EmbeddingModel = "voyage-3-large"
	VoyageCode3  EmbeddingModel = "voyage-code-3"

	DefaultEmbeddingModel = Voyage3Large
)

// Dimension returns the vector length the model produces, or 0 if the
// model is unknown.
func (m EmbeddingModel) Dimension() int {
	switch m {
	case Voyage3Large:
		return 2048
	case VoyageCode3:
		return 1024
	default:
		return 0
	}
}

// Valid reports whether m is a known model.
func (m EmbeddingModel) Valid() bool {
	return m.Dimension() > 0
}

// RerankModel names a rerank model.
type RerankModel string

const (
	Rerank2     RerankModel = "rerank-2"
	Rerank2Lite RerankModel = "rerank-2-lite"

	DefaultRerankModel = Rerank2
)

// Valid reports whether m is a known model.
func (m RerankModel) Valid() bool {
	return m == Rerank2 || m == Rerank2Lite
}

// InputType tells the service how an embedding input will be used.
// Empty leaves it unset.
type InputType string

const (
	InputQuery    InputType = "query"
	InputDocument InputType = "document"
)

// Valid reports whether t is empty or a known input type.
func (t InputType) Valid() bool {
	return t == "" || t == InputQuery || t == InputDocument
}

// EmbeddingRequest is the body of POST /embeddings.
type EmbeddingRequest struct {
	Input      []string       `json:"input"`
	Model      EmbeddingModel `json:"model"`
	InputType  InputType      `json:"input_type,omitempty"`
	Truncation *bool          `json:"truncation,omitempty"`
}

// EmbeddingData is one vector in an embedding response. Index refers to
// the position of the input it was computed from.
type EmbeddingData struct {
	Object    string    `json:"object,omitempty"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Usage is the provider's authoritative token count for one call.
type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

// EmbeddingResponse is the body returned by POST /embeddings.
type EmbeddingResponse struct {
	Object string          `json:"object,omitempty"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model,omitempty"`
	Usage  Usage           `json:"usage"`
}

// RerankRequest is the body of POST /rerank.
type RerankRequest struct {
	Query      string      `json:"query"`
	Documents  []string    `json:"documents"`
	Model      RerankModel `json:"model"`
	TopK       int         `json:"top_k,omitempty"`
	Truncation *bool       `json:"truncation,omitempty"`
}

// RerankResult scores one input document. Index refers to the caller's
// document list; results arrive most relevant first.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
	Document       string  `json:"document,omitempty"`
}

// RerankResponse is the body returned by POST /rerank.
type RerankResponse struct {
	Object string         `json:"object,omitempty"`
	Data   []RerankResult `json:"data"`
	Model  string         `json:"model,omitempty"`
	Usage  Usage          `json:"usage"`
}

// NewRerankRequest validates its arguments and builds a request. An empty
// model selects DefaultRerankModel and a topK of 0 returns every document.
// Validation errors are INVALID_INPUT.
func NewRerankRequest(query string, documents []string, model RerankModel, topK int) (*RerankRequest, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.InvalidInput("query is empty")
	}
	if len(documents) == 0 {
		return nil, errors.InvalidInput("documents are empty")
	}
	if model == "" {
		model = DefaultRerankModel
	}
	if !model.Valid() {
		return nil, errors.InvalidInput("unknown rerank model: " + string(model))
	}
	if topK < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "top_k must not be negative, got %d", topK)
	}
	if topK > len(documents) {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "top_k %d exceeds %d documents", topK, len(documents))
	}
	return &RerankRequest{
		Query:     query,
		Documents: documents,
		Model:     model,
		TopK:      topK,
	}, nil
}
