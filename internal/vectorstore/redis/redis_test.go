package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Should store records in a hash and rank them", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := NewStorage(ctx, Config{URL: "redis://" + mr.Addr()})
		require.NoError(t, err)
		defer s.Close(ctx)

		require.NoError(t, s.Upsert(ctx, []domain.Record{
			{ID: "a#chunk-1", Vector: []float32{1, 0}, Metadata: map[string]any{domain.MetaDocID: "a", domain.MetaChunkIndex: 1}},
			{ID: "b#chunk-1", Vector: []float32{0, 1}, Metadata: map[string]any{domain.MetaDocID: "b"}},
		}))
		assert.True(t, mr.Exists(DefaultKey))
		keys, err := mr.HKeys(DefaultKey)
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		got, err := s.Query(ctx, []float32{0.1, 1}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b#chunk-1", got[0].ID)
		assert.Equal(t, "b", got[0].MetaString(domain.MetaDocID))
	})

	t.Run("Should overwrite on upsert and clear", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "custom")
		require.NoError(t, s.Upsert(ctx, []domain.Record{{ID: "x", Vector: []float32{1}}}))
		require.NoError(t, s.Upsert(ctx, []domain.Record{{ID: "x", Vector: []float32{-1}}}))
		got, err := s.Query(ctx, []float32{1}, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, -1.0, got[0].Score, 1e-9)

		require.NoError(t, s.Clear(ctx))
		got, err = s.Query(ctx, []float32{1}, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Should surface connection failures as collaborator errors", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "")
		mr.Close()
		_, err := s.Query(ctx, []float32{1}, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCollaborator))
	})

	t.Run("Should fail fast when redis is unreachable", func(t *testing.T) {
		_, err := NewStorage(ctx, Config{URL: "redis://127.0.0.1:1/0"})
		require.Error(t, err)
	})
}
