// Package redis keeps vectors in a single redis hash and ranks them in process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/rank"
)

const (
	serviceName = "redis"
	DefaultKey  = "ragqa:vectors"
)

type Config struct {
	URL string
	Key string
}

type Storage struct {
	client *goredis.Client
	key    string
}

type entry struct {
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewStorage connects to redis and verifies the connection with PING.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	dsn := strings.TrimSpace(cfg.URL)
	if dsn == "" {
		return nil, errors.New("redis: url is required")
	}
	opt, err := goredis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, key string) *Storage {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Storage{client: client, key: key}
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(records))
	for _, r := range records {
		data, err := json.Marshal(entry{Vector: r.Vector, Metadata: r.Metadata})
		if err != nil {
			return fmt.Errorf("redis: marshal %q: %w", r.ID, err)
		}
		values = append(values, r.ID, data)
	}
	if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
		return domain.Collaborator(serviceName, err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, domain.Collaborator(serviceName, err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	matches := make([]domain.Match, 0, len(ids))
	for _, id := range ids {
		var e entry
		if err := json.Unmarshal([]byte(all[id]), &e); err != nil {
			return nil, domain.Collaboratorf(serviceName, "redis: decode %q: %v", id, err)
		}
		matches = append(matches, domain.Match{ID: id, Score: rank.Cosine(e.Vector, vector), Metadata: e.Metadata})
	}
	return rank.TopK(matches, topK), nil
}

// Clear removes every stored vector.
func (s *Storage) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *Storage) Close(context.Context) error {
	return s.client.Close()
}
