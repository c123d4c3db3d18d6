package memory

import (
	"context"
	"errors"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/rank"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Upserting an existing id replaces its vector and metadata.
type Storage struct {
	mu      sync.RWMutex
	order   []string
	records map[string]domain.Record
}

func NewStorage() *Storage {
	return &Storage{records: make(map[string]domain.Record)}
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == "" {
			return errors.New("memory store: record id is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		s.records[r.ID] = domain.Record{ID: r.ID, Vector: vec, Metadata: rank.CloneMetadata(r.Metadata)}
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Match, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		matches = append(matches, domain.Match{
			ID:       id,
			Score:    rank.Cosine(r.Vector, vector),
			Metadata: rank.CloneMetadata(r.Metadata),
		})
	}
	return rank.TopK(matches, topK), nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.records = make(map[string]domain.Record)
}

func (s *Storage) Close(context.Context) error { return nil }
