package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func newMockStore(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "ragqa_chunks"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	s, err := NewWithDB(context.Background(), mock, "", 2)
	require.NoError(t, err)
	return s, mock
}

func TestStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Should upsert records in one transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		defer mock.Close()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "ragqa_chunks"`).
			WithArgs("a#chunk-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO "ragqa_chunks"`).
			WithArgs("a#chunk-2", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := s.Upsert(ctx, []domain.Record{
			{ID: "a#chunk-1", Vector: []float32{1, 0}, Metadata: map[string]any{domain.MetaDocID: "a"}},
			{ID: "a#chunk-2", Vector: []float32{0, 1}, Metadata: map[string]any{domain.MetaDocID: "a"}},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back and wrap failures", func(t *testing.T) {
		s, mock := newMockStore(t)
		defer mock.Close()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "ragqa_chunks"`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := s.Upsert(ctx, []domain.Record{{ID: "a#chunk-1", Vector: []float32{1, 0}}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCollaborator))
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject vectors of the wrong dimension", func(t *testing.T) {
		s, mock := newMockStore(t)
		defer mock.Close()
		require.Error(t, s.Upsert(ctx, []domain.Record{{ID: "x", Vector: []float32{1}}}))
		_, err := s.Query(ctx, []float32{1, 2, 3}, 1)
		require.Error(t, err)
	})

	t.Run("Should order matches by distance", func(t *testing.T) {
		s, mock := newMockStore(t)
		defer mock.Close()
		rows := pgxmock.NewRows([]string{"id", "metadata", "score"}).
			AddRow("a#chunk-1", []byte(`{"docId":"a","title":"A","chunkText":"alpha"}`), 0.98).
			AddRow("b#chunk-1", []byte(nil), 0.12)
		mock.ExpectQuery(`SELECT id, metadata, 1 - \(embedding <=> \$1\) AS score FROM "ragqa_chunks"`).
			WithArgs(pgxmock.AnyArg(), 2).
			WillReturnRows(rows)

		got, err := s.Query(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "alpha", got[0].ChunkText())
		assert.InDelta(t, 0.98, got[0].Score, 1e-9)
		assert.Nil(t, got[1].Metadata)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
