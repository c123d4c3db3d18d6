package vectorstore

import (
	"context"
	"fmt"
	"time"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/pgvector"
	"ragqa/internal/vectorstore/pinecone"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/redis"
)

// Storage persists vectors and supports similarity search.
type Storage = domain.VectorStore

// New opens the vector store selected by cfg.Type.
func New(ctx context.Context, cfg config.VectorStoreConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.Qdrant
		if q == nil {
			return nil, fmt.Errorf("vector store: qdrant section is required")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Distance:   q.Distance,
			Timeout:    seconds(q.TimeoutSecs),
		}), nil
	case "pinecone":
		p := cfg.Pinecone
		if p == nil {
			return nil, fmt.Errorf("vector store: pinecone section is required")
		}
		return pinecone.NewStorage(pinecone.Config{
			Host:      p.Host,
			APIKey:    p.APIKey,
			Index:     p.Index,
			Namespace: p.Namespace,
			Timeout:   seconds(p.TimeoutSecs),
		})
	case "redis":
		r := cfg.Redis
		if r == nil {
			return nil, fmt.Errorf("vector store: redis section is required")
		}
		return redis.NewStorage(ctx, redis.Config{URL: r.URL, Key: r.Key})
	case "pgvector":
		p := cfg.PGVector
		if p == nil {
			return nil, fmt.Errorf("vector store: pgvector section is required")
		}
		return pgvector.NewStorage(ctx, pgvector.Config{DSN: p.DSN, Table: p.Table, Dimension: p.Dimension})
	default:
		return nil, fmt.Errorf("vector store: unknown type %q", cfg.Type)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
