package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Should upsert in batches and query with metadata", func(t *testing.T) {
		var upserts []upsertRequest
		var query queryRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/vectors/upsert":
				var body upsertRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				upserts = append(upserts, body)
				_, _ = w.Write([]byte(`{"upsertedCount":1}`))
			case "/query":
				require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
				_, _ = w.Write([]byte(`{"matches":[{"id":"refund#chunk-1","score":0.91,"metadata":{"docId":"refund","title":"Refunds","chunkText":"Refunds take 30 days.","chunkIndex":1}}],"namespace":""}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		s, err := NewStorage(Config{Host: srv.URL, APIKey: "pc-key", Namespace: "docs"})
		require.NoError(t, err)

		records := make([]domain.Record, maxBatch+1)
		for i := range records {
			records[i] = domain.Record{ID: "r", Vector: []float32{1}}
		}
		require.NoError(t, s.Upsert(ctx, records))
		require.Len(t, upserts, 2)
		assert.Len(t, upserts[0].Vectors, maxBatch)
		assert.Equal(t, "docs", upserts[1].Namespace)

		got, err := s.Query(ctx, []float32{0.5}, 3)
		require.NoError(t, err)
		assert.True(t, query.IncludeMetadata)
		assert.Equal(t, 3, query.TopK)
		require.Len(t, got, 1)
		assert.Equal(t, "refund", got[0].MetaString(domain.MetaDocID))
		assert.Equal(t, "Refunds take 30 days.", got[0].ChunkText())
	})

	t.Run("Should decode matches when the content type header is missing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"matches":[{"id":"faq#chunk-0","score":0.5,"metadata":{"chunkText":"Support is open 9-5."}}]}`))
		}))
		defer srv.Close()
		s, err := NewStorage(Config{Host: srv.URL, APIKey: "pc-key"})
		require.NoError(t, err)

		got, err := s.Query(ctx, []float32{1}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "faq#chunk-0", got[0].ID)
		assert.Equal(t, "Support is open 9-5.", got[0].ChunkText())
	})

	t.Run("Should report API errors as collaborator errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":16,"message":"Invalid API Key"}`))
		}))
		defer srv.Close()
		s, err := NewStorage(Config{Host: srv.URL, APIKey: "bad"})
		require.NoError(t, err)
		_, err = s.Query(ctx, []float32{1}, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCollaborator))
		assert.Contains(t, err.Error(), "Invalid API Key")
	})

	t.Run("Should require host and key", func(t *testing.T) {
		_, err := NewStorage(Config{APIKey: "k"})
		require.Error(t, err)
		_, err = NewStorage(Config{Host: "idx.pinecone.io"})
		require.Error(t, err)
	})
}
