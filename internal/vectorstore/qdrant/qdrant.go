package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/rank"
)

const (
	serviceName = "qdrant"
	// payload key holding the caller's record id; qdrant point ids must be uuids
	idPayloadKey = "_id"
)

// Storage is a minimal REST client to Qdrant.
// It creates the collection on first upsert, sized from the first vector.
type Storage struct {
	client     *resty.Client
	collection string
	distance   string

	mu    sync.Mutex
	ready bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &Storage{client: client, collection: cfg.Collection, distance: distance}
}

// PointID maps a record id onto the deterministic uuid used as qdrant point id.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ragqa:"+id)).String()
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	resp, err := s.request(ctx).
		SetPathParam("collection", s.collection).
		Get("/collections/{collection}")
	if err != nil {
		return domain.Collaborator(serviceName, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": s.distance},
		}
		resp, err = s.request(ctx).
			SetPathParam("collection", s.collection).
			SetBody(body).
			Put("/collections/{collection}")
		if err != nil {
			return domain.Collaborator(serviceName, err)
		}
		if resp.IsError() {
			return domain.Collaboratorf(serviceName, "qdrant create collection %s failed: %s", s.collection, resp.Status())
		}
	case resp.IsError():
		return domain.Collaboratorf(serviceName, "qdrant get collection %s failed: %s", s.collection, resp.Status())
	}
	s.ready = true
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := rank.CloneMetadata(r.Metadata)
		if payload == nil {
			payload = map[string]any{}
		}
		payload[idPayloadKey] = r.ID
		points[i] = map[string]any{
			"id":      PointID(r.ID),
			"vector":  r.Vector,
			"payload": payload,
		}
	}
	resp, err := s.request(ctx).
		SetPathParam("collection", s.collection).
		SetQueryParam("wait", "true").
		SetBody(map[string]any{"points": points}).
		Put("/collections/{collection}/points")
	if err != nil {
		return domain.Collaborator(serviceName, err)
	}
	if resp.IsError() {
		return domain.Collaboratorf(serviceName, "qdrant upsert failed: %s", resp.Status())
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Query searches the collection. A collection that does not exist yet holds no matches.
func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return []domain.Match{}, nil
	}
	var out searchResponse
	resp, err := s.request(ctx).
		SetPathParam("collection", s.collection).
		SetBody(map[string]any{
			"vector":       vector,
			"limit":        topK,
			"with_payload": true,
		}).
		SetResult(&out).
		Post("/collections/{collection}/points/search")
	if err != nil {
		return nil, domain.Collaborator(serviceName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return []domain.Match{}, nil
	}
	if resp.IsError() {
		return nil, domain.Collaboratorf(serviceName, "qdrant search failed: %s", resp.Status())
	}
	matches := make([]domain.Match, 0, len(out.Result))
	for _, r := range out.Result {
		id := fmt.Sprint(r.ID)
		if v, ok := r.Payload[idPayloadKey].(string); ok {
			id = v
			delete(r.Payload, idPayloadKey)
		}
		matches = append(matches, domain.Match{ID: id, Score: r.Score, Metadata: r.Payload})
	}
	return matches, nil
}

// Clear drops the collection; it is recreated by the next upsert.
func (s *Storage) Clear(ctx context.Context) error {
	resp, err := s.request(ctx).
		SetPathParam("collection", s.collection).
		Delete("/collections/{collection}")
	if err != nil {
		return domain.Collaborator(serviceName, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return domain.Collaboratorf(serviceName, "qdrant delete collection failed: %s", resp.Status())
	}
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}

func (s *Storage) Close(context.Context) error { return nil }

// request decodes bodies as JSON even when the response omits its content type.
func (s *Storage) request(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).ExpectContentType("application/json")
}
