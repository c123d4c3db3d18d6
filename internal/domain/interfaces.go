package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a validated, trimmed input document.
type Document struct {
	ID      string
	Title   string
	Content string
}

// CandidateDocument is an untrusted ingest entry as received on the wire.
// Fields stay raw so that one malformed entry does not fail the whole request.
type CandidateDocument struct {
	ID      json.RawMessage `json:"id"`
	Title   json.RawMessage `json:"title"`
	Content json.RawMessage `json:"content"`
}

// Chunk is a trimmed window of a document's content.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int // 1-based
}

// Metadata keys stored alongside every vector.
const (
	MetaDocID      = "docId"
	MetaTitle      = "title"
	MetaChunkText  = "chunkText"
	MetaChunkIndex = "chunkIndex"
)

// Record is a single vector upsert.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is a similarity query hit. Metadata is untrusted and may be nil.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// MetaString returns metadata[key] coerced to a trimmed string, or "" when absent.
func (m Match) MetaString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	v, ok := m.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ChunkText returns the trimmed chunk text only when it was stored as a string.
func (m Match) ChunkText() string {
	if m.Metadata == nil {
		return ""
	}
	s, ok := m.Metadata[MetaChunkText].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Source is answer provenance shown to the user.
type Source struct {
	DocID string `json:"docId"`
	Title string `json:"title"`
}

// AskResponse is the result of the ask operation.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// IngestResponse reports what an ingest request stored.
type IngestResponse struct {
	IngestedDocuments int `json:"ingestedDocuments"`
	IngestedChunks    int `json:"ingestedChunks"`
}

// Embedder converts free text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer answers a rendered prompt.
// A blank result means the model had no confident answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close(ctx context.Context) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
