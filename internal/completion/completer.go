// Package completion selects the language model that answers grounded prompts.
package completion

import (
	"fmt"

	"ragqa/internal/completion/extractive"
	"ragqa/internal/completion/openai"
	"ragqa/internal/config"
	"ragqa/internal/domain"
)

// New builds the completer selected by cfg.
func New(cfg config.CompleterConfig) (domain.Completer, error) {
	switch cfg.Type {
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("completer: openai section is required")
		}
		return openai.New(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     oc.ResolveAPIKey(),
			Model:      oc.Model,
			Timeout:    oc.Timeout(),
			MaxRetries: oc.MaxRetries,
			MaxTokens:  cfg.MaxTokens,
		})
	case "extractive":
		return extractive.New(0), nil
	default:
		return nil, fmt.Errorf("completer: unknown type %q", cfg.Type)
	}
}
