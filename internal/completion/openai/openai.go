package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

const (
	DefaultModel     = "gpt-5-mini"
	DefaultMaxTokens = 400
	SystemPrompt     = "Follow the instructions exactly."
	serviceName      = "openai chat"
)

// Config configures the chat completion client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	MaxTokens  int
	RetryBase  time.Duration
}

// Completer answers prompts with a single chat completion.
type Completer struct {
	llm        *lcopenai.LLM
	model      string
	maxTokens  int
	maxRetries uint64
	retryBase  time.Duration
}

func New(cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai chat: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai chat: init client: %w", err)
	}
	return &Completer{
		llm:        llm,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: uint64(cfg.MaxRetries), // #nosec G115 -- clamped above
		retryBase:  cfg.RetryBase,
	}, nil
}

// Complete sends prompt as the user message and returns the trimmed reply.
// An empty reply is not an error; callers decide how to present it.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	backoff := retry.WithMaxRetries(c.maxRetries,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(c.retryBase)))
	var answer string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.llm.GenerateContent(ctx, messages,
			llms.WithModel(c.model),
			llms.WithMaxTokens(c.maxTokens),
		)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.FromContext(ctx).Debug("completion attempt failed", "model", c.model, "error", err)
			return retry.RetryableError(err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			answer = ""
			return nil
		}
		answer = strings.TrimSpace(resp.Choices[0].Content)
		return nil
	})
	if err != nil {
		return "", domain.Collaborator(serviceName, err)
	}
	return answer, nil
}
