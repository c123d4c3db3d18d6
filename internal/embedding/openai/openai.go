package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

const (
	DefaultModel   = "text-embedding-3-small"
	DefaultBaseURL = "https://api.openai.com/v1"
	serviceName    = "openai embeddings"
)

var errNoEmbedding = errors.New("no embedding returned")

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles per attempt up to 5s.
	RetryBase time.Duration
}

// Embedder is an OpenAI-compatible embeddings client.
type Embedder struct {
	llm        *lcopenai.LLM
	model      string
	timeout    time.Duration
	maxRetries uint64
	retryBase  time.Duration
}

// New creates a new embeddings client using the provided configuration.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embeddings: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithEmbeddingModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: init client: %w", err)
	}
	return &Embedder{
		llm:        llm,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: uint64(cfg.MaxRetries), // #nosec G115 -- clamped above
		retryBase:  cfg.RetryBase,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai" }

// Model returns the embedding model requested from the API.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector of text. Transport and API failures are
// retried with exponential backoff before surfacing as collaborator errors.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	backoff := retry.WithMaxRetries(e.maxRetries,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(e.retryBase)))
	var out []float32
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		vectors, err := e.llm.CreateEmbedding(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.FromContext(ctx).Debug("embedding attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return errNoEmbedding
		}
		out = vectors[0]
		return nil
	})
	if err != nil {
		return nil, domain.Collaborator(serviceName, err)
	}
	return out, nil
}
