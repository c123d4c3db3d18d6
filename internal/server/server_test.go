package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/metrics"
	"ragqa/internal/prompt"
	"ragqa/internal/service"
)

type stubRAG struct {
	docs      []domain.CandidateDocument
	question  string
	topK      *int
	ingestErr error
	askErr    error
	askResp   domain.AskResponse
}

func (s *stubRAG) Ingest(_ context.Context, docs []domain.CandidateDocument) (domain.IngestResponse, error) {
	s.docs = docs
	if s.ingestErr != nil {
		return domain.IngestResponse{}, s.ingestErr
	}
	return domain.IngestResponse{IngestedDocuments: len(docs), IngestedChunks: 2 * len(docs)}, nil
}

func (s *stubRAG) Ask(_ context.Context, question string, topK *int) (domain.AskResponse, error) {
	s.question = question
	s.topK = topK
	return s.askResp, s.askErr
}

func intPtr(n int) *int { return &n }

func newTestRouter(rag RAG, cfg config.ServerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewRouter(cfg, rag, metrics.New(), log)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "OPTIONS,POST,GET", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestIngestHandler(t *testing.T) {
	t.Run("Should pass every entry to the service", func(t *testing.T) {
		rag := &stubRAG{}
		r := newTestRouter(rag, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ingest",
			`{"documents":[{"id":"a","title":"A","content":"alpha"},"not an object",{"id":1}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assertCORS(t, w)
		assert.JSONEq(t, `{"ingestedDocuments":3,"ingestedChunks":6}`, w.Body.String())
		require.Len(t, rag.docs, 3)
		assert.JSONEq(t, `"a"`, string(rag.docs[0].ID))
		assert.Empty(t, rag.docs[1].ID)
		assert.JSONEq(t, `1`, string(rag.docs[2].ID))
	})

	cases := map[string]struct {
		body string
		want string
	}{
		"missing body":        {"", "Missing request body"},
		"blank body":          {"  \n", "Missing request body"},
		"null body":           {" null ", "Missing request body"},
		"missing documents":   {`{}`, "documents is required"},
		"empty documents":     {`{"documents":[]}`, "documents is required"},
		"documents not array": {`{"documents":"abc"}`, "documents is required"},
	}
	for name, tc := range cases {
		t.Run("Should reject "+name, func(t *testing.T) {
			r := newTestRouter(&stubRAG{}, config.ServerConfig{})
			w := do(r, http.MethodPost, "/ingest", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assertCORS(t, w)
			assert.JSONEq(t, `{"error":"`+tc.want+`"}`, w.Body.String())
		})
	}

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ingest", `{"documents":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var out errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.NotEmpty(t, out.Error)
	})

	t.Run("Should surface collaborator failures as 400", func(t *testing.T) {
		rag := &stubRAG{ingestErr: domain.Collaborator("embeddings", errors.New("quota exceeded"))}
		r := newTestRouter(rag, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ingest", `{"documents":[{"id":"a","title":"A","content":"x"}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"quota exceeded"}`, w.Body.String())
	})
}

func TestAskHandler(t *testing.T) {
	t.Run("Should answer with sources", func(t *testing.T) {
		rag := &stubRAG{askResp: domain.AskResponse{
			Answer:  "30 days.",
			Sources: []domain.Source{{DocID: "refund", Title: "Refunds"}},
		}}
		r := newTestRouter(rag, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ask", `{"question":"How long?","topK":5}`)
		require.Equal(t, http.StatusOK, w.Code)
		assertCORS(t, w)
		assert.JSONEq(t, `{"answer":"30 days.","sources":[{"docId":"refund","title":"Refunds"}]}`, w.Body.String())
		assert.Equal(t, "How long?", rag.question)
		require.NotNil(t, rag.topK)
		assert.Equal(t, 5, *rag.topK)
	})

	t.Run("Should render nil sources as an empty list", func(t *testing.T) {
		rag := &stubRAG{askResp: domain.AskResponse{Answer: prompt.NoAnswer}}
		r := newTestRouter(rag, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ask", `{"question":"q"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"sources":[]`)
		assert.Nil(t, rag.topK)
	})

	t.Run("Should treat a non string question as missing", func(t *testing.T) {
		rag := &stubRAG{}
		r := newTestRouter(rag, config.ServerConfig{})
		do(r, http.MethodPost, "/ask", `{"question":42}`)
		assert.Empty(t, rag.question)
	})

	t.Run("Should coerce topK like an integer conversion", func(t *testing.T) {
		cases := map[string]*int{
			`2.7`:                    intPtr(2),
			`-1.9`:                   intPtr(-1),
			`"5"`:                    intPtr(5),
			`" 7 "`:                  intPtr(7),
			`true`:                   intPtr(1),
			`false`:                  intPtr(0),
			`1e12`:                   intPtr(math.MaxInt32),
			`"99999999999999999999"`: intPtr(math.MaxInt32),
			`"2.5"`:                  nil,
			`"abc"`:                  nil,
			`[4]`:                    nil,
			`{"k":4}`:                nil,
			`null`:                   nil,
		}
		for raw, want := range cases {
			rag := &stubRAG{askResp: domain.AskResponse{Answer: "ok"}}
			r := newTestRouter(rag, config.ServerConfig{})
			w := do(r, http.MethodPost, "/ask", `{"question":"q","topK":`+raw+`}`)
			require.Equal(t, http.StatusOK, w.Code, raw)
			assert.Equal(t, want, rag.topK, raw)
		}
	})

	t.Run("Should clamp coerced topK in the service", func(t *testing.T) {
		rag := &stubRAG{}
		r := newTestRouter(rag, config.ServerConfig{})
		do(r, http.MethodPost, "/ask", `{"question":"q","topK":"50"}`)
		require.NotNil(t, rag.topK)
		assert.Equal(t, service.MaxTopK, service.ClampTopK(rag.topK))
		do(r, http.MethodPost, "/ask", `{"question":"q","topK":"many"}`)
		assert.Equal(t, service.DefaultTopK, service.ClampTopK(rag.topK))
	})

	t.Run("Should surface service validation errors", func(t *testing.T) {
		rag := &stubRAG{askErr: service.ErrQuestionRequired}
		r := newTestRouter(rag, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ask", `{"question":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertCORS(t, w)
		assert.JSONEq(t, `{"error":"Question is required"}`, w.Body.String())
	})

	t.Run("Should reject a missing body", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		w := do(r, http.MethodPost, "/ask", "")
		assert.JSONEq(t, `{"error":"Missing request body"}`, w.Body.String())
	})

	t.Run("Should reject bodies over the configured limit", func(t *testing.T) {
		rag := &stubRAG{}
		r := newTestRouter(rag, config.ServerConfig{MaxBodyBytes: 64})
		w := do(r, http.MethodPost, "/ask", `{"question":"`+strings.Repeat("q", 100)+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertCORS(t, w)
		assert.JSONEq(t, `{"error":"Request body too large"}`, w.Body.String())
		assert.Empty(t, rag.question)

		w = do(r, http.MethodPost, "/ask", `{"question":"short"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Should answer preflight requests on any path", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		for _, path := range []string{"/ask", "/ingest", "/anything"} {
			w := do(r, http.MethodOptions, path, "")
			assert.Equal(t, http.StatusNoContent, w.Code, path)
			assertCORS(t, w)
			assert.Empty(t, w.Body.String())
		}
	})

	t.Run("Should assign and echo request ids", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		w := do(r, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
		req.Header.Set(HeaderRequestID, "abc-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
	})

	t.Run("Should answer unknown routes with JSON", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		w := do(r, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assertCORS(t, w)
		assert.JSONEq(t, `{"error":"Not Found"}`, w.Body.String())
	})

	t.Run("Should rate limit when enabled", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{
			RateLimit: config.RateLimitConfig{Enabled: true, Limit: 1, Period: time.Minute},
		})
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)
		w := do(r, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assertCORS(t, w)
	})

	t.Run("Should expose metrics", func(t *testing.T) {
		r := newTestRouter(&stubRAG{}, config.ServerConfig{})
		do(r, http.MethodGet, "/healthz", "")
		w := do(r, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `ragqa_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`)
	})
}

func TestServe(t *testing.T) {
	t.Run("Should serve until the context is cancelled", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
		s := New(config.ServerConfig{ShutdownTimeout: time.Second}, &stubRAG{}, metrics.New(), log)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, ln) }()

		resp, err := http.Post("http://"+ln.Addr().String()+"/ingest", "application/json",
			bytes.NewBufferString(`{"documents":[{"id":"a","title":"A","content":"x"}]}`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}
