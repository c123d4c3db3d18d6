package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/metrics"
	"ragqa/internal/prompt"
)

const (
	DefaultTopK             = 3
	MinTopK                 = 1
	MaxTopK                 = 10
	DefaultEmbedConcurrency = 4
)

// ErrQuestionRequired is returned by Ask for a blank question.
var ErrQuestionRequired = domain.Invalid("Question is required",
	domain.FieldError{Field: "question", Rule: "required"})

// documentInput is a candidate document after string decoding and trimming.
type documentInput struct {
	ID      string `validate:"required"`
	Title   string `validate:"required"`
	Content string `validate:"required"`
}

// RAGService ingests documents into a vector store and answers questions
// grounded on what it retrieves.
type RAGService struct {
	chunker     domain.Chunker
	embedder    domain.Embedder
	store       domain.VectorStore
	completer   domain.Completer
	concurrency int
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

type Option func(*RAGService)

// WithChunker replaces the default 1000/200 window chunker.
func WithChunker(c domain.Chunker) Option {
	return func(s *RAGService) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithEmbedConcurrency bounds how many chunks of a document are embedded at once.
func WithEmbedConcurrency(n int) Option {
	return func(s *RAGService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RAGService) { s.metrics = m }
}

func NewRAGService(
	embedder domain.Embedder,
	store domain.VectorStore,
	completer domain.Completer,
	opts ...Option,
) *RAGService {
	def, err := chunker.NewWindowChunker(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	if err != nil {
		panic(err) // defaults are valid
	}
	s := &RAGService{
		chunker:     def,
		embedder:    embedder,
		store:       store,
		completer:   completer,
		concurrency: DefaultEmbedConcurrency,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest chunks, embeds and stores every valid document. Invalid candidates
// are skipped without error. The first embedding or store failure aborts
// the request; documents upserted before it stay stored.
func (s *RAGService) Ingest(ctx context.Context, docs []domain.CandidateDocument) (domain.IngestResponse, error) {
	log := logger.FromContext(ctx)
	var resp domain.IngestResponse
	for i, candidate := range docs {
		doc, ok := s.validDocument(candidate)
		if !ok {
			log.Debug("skipping invalid document", "position", i)
			continue
		}
		chunks, err := s.chunker.Chunk(doc)
		if err != nil {
			return domain.IngestResponse{}, err
		}
		if len(chunks) == 0 {
			continue
		}
		records, err := s.embedChunks(ctx, doc, chunks)
		if err != nil {
			log.Error("embedding failed", "doc_id", doc.ID, "error", err)
			return domain.IngestResponse{}, err
		}
		if err := s.store.Upsert(ctx, records); err != nil {
			log.Error("upsert failed", "doc_id", doc.ID, "error", err)
			return domain.IngestResponse{}, domain.Collaborator("vector store", err)
		}
		resp.IngestedDocuments++
		resp.IngestedChunks += len(chunks)
		s.metrics.RecordIngest(1, len(chunks))
		log.Info("document stored", "doc_id", doc.ID, "chunks", len(chunks))
	}
	return resp, nil
}

func (s *RAGService) validDocument(c domain.CandidateDocument) (domain.Document, bool) {
	in := documentInput{
		ID:      trimmedString(c.ID),
		Title:   trimmedString(c.Title),
		Content: trimmedString(c.Content),
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Document{}, false
	}
	return domain.Document{ID: in.ID, Title: in.Title, Content: in.Content}, true
}

// trimmedString decodes a JSON string and trims it; anything else yields "".
func trimmedString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func (s *RAGService) embedChunks(ctx context.Context, doc domain.Document, chunks []domain.Chunk) ([]domain.Record, error) {
	records := make([]domain.Record, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, ch.Text)
			if err != nil {
				logger.FromContext(ctx).Debug("chunk embedding failed", "chunk_id", ch.ChunkID, "error", err)
				return domain.Collaborator("embeddings", err)
			}
			records[i] = domain.Record{
				ID:     ch.ChunkID,
				Vector: vec,
				Metadata: map[string]any{
					domain.MetaDocID:      doc.ID,
					domain.MetaTitle:      doc.Title,
					domain.MetaChunkText:  ch.Text,
					domain.MetaChunkIndex: ch.Index,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// ClampTopK applies the default and the [MinTopK, MaxTopK] bounds.
func ClampTopK(topK *int) int {
	if topK == nil {
		return DefaultTopK
	}
	return max(MinTopK, min(*topK, MaxTopK))
}

// Ask answers question from the stored chunks nearest to it. When no match
// carries chunk text the completer is not called and NoAnswer is returned.
func (s *RAGService) Ask(ctx context.Context, question string, topK *int) (domain.AskResponse, error) {
	log := logger.FromContext(ctx)
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.AskResponse{}, ErrQuestionRequired
	}
	k := ClampTopK(topK)

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.metrics.RecordAsk(metrics.OutcomeError)
		return domain.AskResponse{}, domain.Collaborator("embeddings", err)
	}
	matches, err := s.store.Query(ctx, vec, k)
	if err != nil {
		s.metrics.RecordAsk(metrics.OutcomeError)
		return domain.AskResponse{}, domain.Collaborator("vector store", err)
	}

	chunks := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := m.ChunkText(); text != "" {
			chunks = append(chunks, text)
		}
	}
	if len(chunks) == 0 {
		log.Info("no context for question", "matches", len(matches))
		s.metrics.RecordAsk(metrics.OutcomeNoContext)
		return domain.AskResponse{Answer: prompt.NoAnswer, Sources: []domain.Source{}}, nil
	}

	answer, err := s.completer.Complete(ctx, prompt.Build(question, chunks))
	if err != nil {
		s.metrics.RecordAsk(metrics.OutcomeError)
		return domain.AskResponse{}, domain.Collaborator("completion", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = prompt.NoAnswer
	}
	s.metrics.RecordAsk(metrics.OutcomeAnswered)
	log.Info("question answered", "top_k", k, "chunks", len(chunks))
	return domain.AskResponse{Answer: answer, Sources: Sources(matches)}, nil
}

// Sources lists the distinct documents behind matches in first-seen order.
// Matches without both a docId and a title are left out.
func Sources(matches []domain.Match) []domain.Source {
	out := make([]domain.Source, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		src := domain.Source{DocID: m.MetaString(domain.MetaDocID), Title: m.MetaString(domain.MetaTitle)}
		if src.DocID == "" || src.Title == "" {
			continue
		}
		if _, dup := seen[src.DocID]; dup {
			continue
		}
		seen[src.DocID] = struct{}{}
		out = append(out, src)
	}
	return out
}
