package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/embedding/openai"
)

// New builds the embedder selected by cfg, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var (
		base domain.Embedder
		err  error
	)
	switch cfg.Type {
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("embedder: openai section is required")
		}
		base, err = openai.New(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     oc.ResolveAPIKey(),
			Model:      oc.Model,
			Timeout:    oc.Timeout(),
			MaxRetries: oc.MaxRetries,
		})
	case "hashing":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		base = hashing.NewEmbedder(dim)
	default:
		return nil, fmt.Errorf("embedder: unknown type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	return NewCached(base, cfg.CacheSize)
}

// Cached memoizes embeddings of identical texts. Vectors are copied on the
// way in and out so callers may mutate what they receive.
type Cached struct {
	next  domain.Embedder
	cache *lru.Cache[string, []float32]
}

func NewCached(next domain.Embedder, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedder cache size must be greater than zero")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedder cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return cloneVector(v), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) > 0 {
		c.cache.Add(key, cloneVector(v))
	}
	return v, nil
}

// Len reports how many texts are currently cached.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
