// Package client talks to a running ragqa server over HTTP.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ragqa/internal/domain"
)

// Document is the wire shape of a document sent to /ingest.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ingestRequest struct {
	Documents []Document `json:"documents"`
}

type askRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"topK,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// APIError is a non 2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return e.Message
}

type Client struct {
	http *resty.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Ingest posts docs to /ingest and returns the stored counts.
func (c *Client) Ingest(ctx context.Context, docs []Document) (domain.IngestResponse, error) {
	var out domain.IngestResponse
	err := c.post(ctx, "/ingest", ingestRequest{Documents: docs}, &out)
	return out, err
}

// IngestRaw posts a ready made request body to /ingest.
func (c *Client) IngestRaw(ctx context.Context, body []byte) (domain.IngestResponse, error) {
	var out domain.IngestResponse
	err := c.post(ctx, "/ingest", body, &out)
	return out, err
}

// Ask posts question to /ask. A nil topK lets the server pick its default.
func (c *Client) Ask(ctx context.Context, question string, topK *int) (domain.AskResponse, error) {
	var out domain.AskResponse
	err := c.post(ctx, "/ask", askRequest{Question: question, TopK: topK}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: apiErr.Error}
	}
	return nil
}

// IsAPIError reports whether err came back from the server as a {error} body.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
