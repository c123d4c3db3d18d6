package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestChunkText(t *testing.T) {
	t.Run("Should fail when chunk size does not exceed overlap", func(t *testing.T) {
		for _, overlap := range []int{100, 120} {
			_, err := ChunkText("hello", 100, overlap)
			require.Error(t, err)
			assert.Equal(t, "chunkSize must be greater than overlap", err.Error())
			assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
		}
	})

	t.Run("Should reconstruct original text when de-overlapped", func(t *testing.T) {
		text := strings.Repeat("a", 2500)
		chunks, err := ChunkText(text, 1000, 200)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 1000)
		assert.Len(t, chunks[1], 1000)
		assert.Len(t, chunks[2], 900)

		var rebuilt strings.Builder
		rebuilt.WriteString(chunks[0])
		for _, c := range chunks[1:] {
			rebuilt.WriteString(c[200:])
		}
		assert.Equal(t, text, rebuilt.String())
	})

	t.Run("Should return no chunks for empty text", func(t *testing.T) {
		chunks, err := ChunkText("", DefaultChunkSize, DefaultOverlap)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Should return one trimmed chunk for short text", func(t *testing.T) {
		chunks, err := ChunkText("  short text \n", DefaultChunkSize, DefaultOverlap)
		require.NoError(t, err)
		assert.Equal(t, []string{"short text"}, chunks)
	})

	t.Run("Should drop whitespace-only windows", func(t *testing.T) {
		text := "abcd" + strings.Repeat(" ", 12)
		chunks, err := ChunkText(text, 4, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcd"}, chunks)
	})

	t.Run("Should keep every chunk within chunk size", func(t *testing.T) {
		text := strings.Repeat("lorem ipsum dolor sit amet ", 97)
		for _, tc := range []struct{ size, overlap int }{{50, 10}, {64, 63}, {7, 1}, {1000, 200}} {
			chunks, err := ChunkText(text, tc.size, tc.overlap)
			require.NoError(t, err)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tc.size)
			}
		}
	})

	t.Run("Should measure windows in runes", func(t *testing.T) {
		text := strings.Repeat("é", 25)
		chunks, err := ChunkText(text, 10, 2)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c))
		}
		assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
		assert.Equal(t, 9, utf8.RuneCountInString(chunks[2]))
	})
}

func TestWindowChunker(t *testing.T) {
	t.Run("Should tag chunks with one-based index and id", func(t *testing.T) {
		c, err := NewWindowChunker(10, 2)
		require.NoError(t, err)
		chunks, err := c.Chunk(domain.Document{ID: "refund", Title: "Refund", Content: strings.Repeat("x", 18)})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "refund#chunk-1", chunks[0].ChunkID)
		assert.Equal(t, 1, chunks[0].Index)
		assert.Equal(t, "refund#chunk-2", chunks[1].ChunkID)
		assert.Equal(t, "refund", chunks[1].DocumentID)
	})

	t.Run("Should reject overlap not smaller than size", func(t *testing.T) {
		_, err := NewWindowChunker(10, 10)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
