package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts inner calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls atomic.Int64
	batchCalls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls.Add(1)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Hit(t *testing.T) {
	// Given: a cached embedder over a counting inner
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	// When: I embed the same query twice
	a, err := cached.Embed(context.Background(), "who is Arjuna")
	require.NoError(t, err)
	b, err := cached.Embed(context.Background(), "who is Arjuna")
	require.NoError(t, err)

	// Then: the inner embedder ran once and results match
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, a, b)
}

func TestCachedEmbedder_BatchReusesCache(t *testing.T) {
	// Given: one text already cached
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "Krishna")
	require.NoError(t, err)

	// When: I batch embed a mix of cached and new texts
	vecs, err := cached.EmbedBatch(context.Background(), []string{"Krishna", "Bhima"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Then: only the uncached text went through the inner batch call
	assert.Equal(t, int64(1), inner.batchCalls.Load())

	// And: a fully cached batch skips the inner embedder entirely
	_, err = cached.EmbedBatch(context.Background(), []string{"Krishna", "Bhima"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())
}
