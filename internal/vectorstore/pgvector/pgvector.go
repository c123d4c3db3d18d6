package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"ragqa/internal/domain"
)

const (
	serviceName  = "pgvector"
	DefaultTable = "ragqa_chunks"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type Config struct {
	DSN       string
	Table     string
	Dimension int
}

type Storage struct {
	db         DB
	tableIdent string
	dimension  int
}

// NewStorage connects to postgres and ensures the extension and table exist.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("pgvector: dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	s, err := NewWithDB(ctx, pool, cfg.Table, cfg.Dimension)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing pool and ensures the schema.
func NewWithDB(ctx context.Context, db DB, table string, dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("pgvector: dimension must be greater than zero")
	}
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	s := &Storage{db: db, tableIdent: pgx.Identifier{table}.Sanitize(), dimension: dimension}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d),
		metadata JSONB,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, s.tableIdent, s.dimension)
	if _, err := s.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	return nil
}

// Upsert writes all records in one transaction.
func (s *Storage) Upsert(ctx context.Context, records []domain.Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("pgvector: record %q dimension mismatch (got %d want %d)", r.ID, len(r.Vector), s.dimension)
		}
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Collaborator(serviceName, fmt.Errorf("pgvector: begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			err = domain.Collaborator(serviceName, err)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = domain.Collaborator(serviceName, fmt.Errorf("pgvector: commit: %w", commitErr))
		}
	}()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    embedding = excluded.embedding,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`, s.tableIdent)
	for _, r := range records {
		metadata, marshalErr := json.Marshal(r.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", r.ID, marshalErr)
		}
		if _, execErr := tx.Exec(ctx, stmt, r.ID, pgv.NewVector(r.Vector), metadata, time.Now().UTC()); execErr != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", r.ID, execErr)
		}
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return []domain.Match{}, nil
	}
	if len(vector) != s.dimension {
		return nil, errors.New("pgvector: query dimension mismatch")
	}
	sql := fmt.Sprintf(
		"SELECT id, metadata, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 ASC LIMIT $2",
		s.tableIdent,
	)
	rows, err := s.db.Query(ctx, sql, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, domain.Collaborator(serviceName, fmt.Errorf("pgvector: search: %w", err))
	}
	defer rows.Close()
	matches := make([]domain.Match, 0, topK)
	for rows.Next() {
		var (
			id          string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&id, &metadataRaw, &score); err != nil {
			return nil, domain.Collaborator(serviceName, fmt.Errorf("pgvector: scan: %w", err))
		}
		var meta map[string]any
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, domain.Collaborator(serviceName, fmt.Errorf("pgvector: decode metadata: %w", err))
			}
		}
		matches = append(matches, domain.Match{ID: id, Score: score, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Collaborator(serviceName, fmt.Errorf("pgvector: search rows: %w", err))
	}
	return matches, nil
}

func (s *Storage) Close(context.Context) error {
	s.db.Close()
	return nil
}
