package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/furon-kuina/semleaf/domain/search"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-large"

// errEmptyResponse indicates the API answered 200 without any vector. This is
// retryable because overloaded upstreams occasionally produce empty bodies.
var errEmptyResponse = errors.New("embedding response contained no vectors")

// errUpstreamProviderFailure indicates the API returned HTTP 200 but the
// response body contained an error instead of embedding data. This happens
// with routing providers when every upstream fails. The response has zero
// data, zero usage and an empty model, so retrying is futile.
var errUpstreamProviderFailure = errors.New("upstream provider failure")

// errDimensionMismatch indicates the vector length differs from the configured dimension.
var errDimensionMismatch = errors.New("embedding dimension mismatch")

// OpenAIConfig holds configuration for the OpenAI embedder.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimension         int
	Timeout           time.Duration
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffFactor     float64
	RequestsPerSecond float64
	CacheDir          string
}

// OpenAIEmbedder implements search.Embedder with the OpenAI embeddings API
// or any server that speaks the same protocol.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimension     int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// OpenAIOption is a functional option for OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewOpenAIEmbedder creates an embedder from configuration. A zero
// MaxRetries means a single attempt per call.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.CacheDir != "" {
		cached, err := NewCachingTransport(cfg.CacheDir, nil)
		if err != nil {
			return nil, err
		}
		transport = cached
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: transport}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	initialDelay := cfg.InitialDelay
	if initialDelay == 0 {
		initialDelay = 2 * time.Second
	}

	backoffFactor := cfg.BackoffFactor
	if backoffFactor == 0 {
		backoffFactor = 2.0
	}

	p := &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(config),
		model:         model,
		dimension:     cfg.Dimension,
		maxRetries:    max(cfg.MaxRetries, 0),
		initialDelay:  initialDelay,
		backoffFactor: backoffFactor,
		logger:        slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Model returns the embedding model identifier.
func (p *OpenAIEmbedder) Model() string { return p.model }

// Dimension returns the expected vector length, or 0 when unchecked.
func (p *OpenAIEmbedder) Dimension() int { return p.dimension }

// Embed returns the vector for text. Only the first vector of the response is used.
func (p *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", search.ErrEmbedding, NewProviderError("embedding", 0, "empty input", nil))
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: text,
	}
	if p.dimension > 0 && strings.HasPrefix(p.model, "text-embedding-3") {
		req.Dimensions = p.dimension
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			if string(resp.Model) == "" && resp.Usage.TotalTokens == 0 {
				return fmt.Errorf(
					"%w: provider returned HTTP 200 with no embedding data, no model and zero usage",
					errUpstreamProviderFailure,
				)
			}
			return errEmptyResponse
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", search.ErrEmbedding, p.wrapError("embedding", err))
	}

	raw := resp.Data[0].Embedding
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %w", search.ErrEmbedding, p.wrapError("embedding", errEmptyResponse))
	}
	if p.dimension > 0 && len(raw) != p.dimension {
		err := fmt.Errorf("%w: got %d, want %d", errDimensionMismatch, len(raw), p.dimension)
		return nil, fmt.Errorf("%w: %w", search.ErrEmbedding, p.wrapError("embedding", err))
	}

	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
	}
	return vector, nil
}

// withRetry executes the function with exponential backoff retry.
func (p *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !p.isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			pe := p.wrapError("embedding", lastErr)
			p.logger.WarnContext(ctx, "retrying embedding request",
				slog.String("operation", pe.Operation()),
				slog.Int("status", pe.StatusCode()),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	if p.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func (p *OpenAIEmbedder) isRetryable(err error) bool {
	if errors.Is(err, errEmptyResponse) {
		return true
	}

	// HTTP client timeouts are retryable
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// wrapError wraps an OpenAI error into a ProviderError.
func (p *OpenAIEmbedder) wrapError(operation string, err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ search.Embedder = (*OpenAIEmbedder)(nil)
