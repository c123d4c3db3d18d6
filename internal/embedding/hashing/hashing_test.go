package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	s := 0.0
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	t.Run("Should produce unit vectors of the configured dimension", func(t *testing.T) {
		v, err := e.Embed(ctx, "Refunds are issued within 30 days of purchase.")
		require.NoError(t, err)
		assert.Len(t, v, 64)
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	})

	t.Run("Should be deterministic", func(t *testing.T) {
		a, err := e.Embed(ctx, "shipping policy")
		require.NoError(t, err)
		b, err := NewEmbedder(64).Embed(ctx, "shipping policy")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Should return a zero vector for stopwords only", func(t *testing.T) {
		v, err := e.Embed(ctx, "the and of")
		require.NoError(t, err)
		assert.Len(t, v, 64)
		assert.Zero(t, norm(v))
	})

	t.Run("Should rank related text above unrelated text", func(t *testing.T) {
		q, _ := e.Embed(ctx, "refund policy")
		related, _ := e.Embed(ctx, "Our refund policy allows returns.")
		unrelated, _ := e.Embed(ctx, "Bananas grow in tropical climates.")
		assert.Greater(t, dot(q, related), dot(q, unrelated))
	})

	t.Run("Should default the dimension", func(t *testing.T) {
		assert.Equal(t, DefaultDimension, NewEmbedder(0).Dimension())
	})
}

func TestTokenize(t *testing.T) {
	e := NewEmbedder(8)
	assert.Equal(t, []string{"we", "ship", "orders", "3", "days"}, e.Tokenize("We ship the orders in 3 days"))
	assert.Nil(t, e.Tokenize("  ...  "))
}
