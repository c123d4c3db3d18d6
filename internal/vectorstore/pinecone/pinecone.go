// Package pinecone talks to the data plane of a serverless Pinecone index.
package pinecone

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ragqa/internal/domain"
)

const (
	serviceName = "pinecone"
	apiVersion  = "2024-07"
	// vectors per upsert request
	maxBatch = 100
)

type Config struct {
	Host      string
	APIKey    string
	Index     string
	Namespace string
	Timeout   time.Duration
}

type Storage struct {
	client    *resty.Client
	index     string
	namespace string
}

func NewStorage(cfg Config) (*Storage, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, errors.New("pinecone: index host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Api-Key", cfg.APIKey).
		SetHeader("X-Pinecone-API-Version", apiVersion)
	return &Storage{client: client, index: cfg.Index, namespace: cfg.Namespace}, nil
}

// Index returns the configured index name, used for logging only.
func (s *Storage) Index() string { return s.index }

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	for start := 0; start < len(records); start += maxBatch {
		end := min(start+maxBatch, len(records))
		req := upsertRequest{Namespace: s.namespace, Vectors: make([]vector, 0, end-start)}
		for _, r := range records[start:end] {
			req.Vectors = append(req.Vectors, vector{ID: r.ID, Values: r.Vector, Metadata: r.Metadata})
		}
		var apiErr errorBody
		resp, err := s.request(ctx).SetBody(req).SetError(&apiErr).Post("/vectors/upsert")
		if err != nil {
			return domain.Collaborator(serviceName, err)
		}
		if resp.IsError() {
			return s.failure("upsert", resp.Status(), apiErr)
		}
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vec []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return []domain.Match{}, nil
	}
	var (
		out    queryResponse
		apiErr errorBody
	)
	resp, err := s.request(ctx).
		SetBody(queryRequest{Vector: vec, TopK: topK, IncludeMetadata: true, Namespace: s.namespace}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/query")
	if err != nil {
		return nil, domain.Collaborator(serviceName, err)
	}
	if resp.IsError() {
		return nil, s.failure("query", resp.Status(), apiErr)
	}
	matches := make([]domain.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (s *Storage) failure(op, status string, body errorBody) error {
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return domain.Collaboratorf(serviceName, "pinecone %s failed: %s", op, msg)
	}
	return domain.Collaboratorf(serviceName, "pinecone %s failed: %s", op, status)
}

func (s *Storage) Close(context.Context) error { return nil }

// request decodes bodies as JSON even when the response omits its content type.
func (s *Storage) request(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).ExpectContentType("application/json")
}
