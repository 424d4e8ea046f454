package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/logging"
	"github.com/vinayprograms/voyagekit/telemetry"
)

// Transport sends one request to the service and returns its decoded
// response. Implementations must be safe for concurrent use.
type Transport interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
	Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error)
}

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	APIKey  string
	BaseURL string        // default: DefaultBaseURL
	Timeout time.Duration // 0 means no client-side timeout
	Client  *http.Client  // overrides Timeout when set
	Logger  *logging.Logger
}

// HTTPTransport is the Transport for the Voyage REST API.
type HTTPTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport. An API key is required.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.APIKey == "" {
		return nil, errors.InvalidInput("api key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &HTTPTransport{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  logger.WithComponent("voyage"),
	}, nil
}

// Embed implements Transport.
func (t *HTTPTransport) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	var resp EmbeddingResponse
	if err := t.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rerank implements Transport.
func (t *HTTPTransport) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	var resp RerankResponse
	if err := t.post(ctx, "/rerank", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, in, out interface{}) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "failed to marshal request")
	}

	url := t.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	telemetry.InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	t.logger.Debug("sending request", map[string]interface{}{"url": url})

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Network(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("request rejected", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return errors.FromStatus(resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.MalformedResponse(err.Error(), errors.WithCause(err))
	}
	return nil
}
