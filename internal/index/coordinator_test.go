package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/embed"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

const ramayanaText = `Rama was the eldest son of king Dasharatha of Ayodhya,
beloved by the people for his virtue and his skill with the bow.

Sita was carried away to Lanka by Ravana, and Rama searched
the forests of the south with Lakshmana at his side.`

const mahabharataText = `Krishna counseled Arjuna on the field of Kurukshetra
when the archer laid down his bow before the assembled armies.

Draupadi was staked and lost in the game of dice, and the insult
in the hall set the Pandavas on the road to war.`

type fixture struct {
	coordinator *Coordinator
	chunks      store.ChunkStore
	lexical     store.LexicalIndex
	vectors     store.VectorIndex
	docsDir     string
	vectorPath  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(docsDir, 0o755))
	writeDoc(t, docsDir, "ramayana.txt", ramayanaText)
	writeDoc(t, docsDir, "mahabharata.txt", mahabharataText)

	embedder := embed.NewStaticEmbedder()

	chunks, err := store.NewSQLiteChunkStore(filepath.Join(dir, "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	lexical, err := store.NewBleveLexicalIndex(filepath.Join(dir, "bleve"), store.DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	vectors, err := store.NewHNSWIndex(store.DefaultVectorConfig(embedder.Dimensions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	vectorPath := filepath.Join(dir, "vectors.hnsw")
	coordinator, err := NewCoordinator(Config{
		Chunks:     chunks,
		Lexical:    lexical,
		Vectors:    vectors,
		Embedder:   embedder,
		VectorPath: vectorPath,
	})
	require.NoError(t, err)

	return &fixture{
		coordinator: coordinator,
		chunks:      chunks,
		lexical:     lexical,
		vectors:     vectors,
		docsDir:     docsDir,
		vectorPath:  vectorPath,
	}
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCoordinator_IndexCorpus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// When
	result, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)

	// Then: both documents land in all three indexes
	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)
	assert.Zero(t, result.Skipped)
	assert.Positive(t, result.Chunks)

	count, err := f.chunks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)
	assert.Equal(t, result.Chunks, f.vectors.Count())
	assert.Equal(t, result.Chunks, f.lexical.Stats().DocumentCount)

	// The vector index was persisted.
	_, err = os.Stat(f.vectorPath)
	assert.NoError(t, err)
}

func TestCoordinator_SecondRunSkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	result, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)

	require.NoError(t, err)
	assert.Zero(t, result.Documents)
	assert.Equal(t, 2, result.Skipped)
}

func TestCoordinator_ForceReindexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	result, err := f.coordinator.IndexCorpus(ctx, f.docsDir, true)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)
}

func TestCoordinator_ModifiedDocumentIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	// Given: one document shrinks to a single paragraph
	writeDoc(t, f.docsDir, "ramayana.txt", "Rama returned to Ayodhya and was crowned king of the land.")

	result, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, 1, result.Skipped)

	// Then: no stale chunks survive anywhere
	count, err := f.chunks.Count(ctx)
	require.NoError(t, err)
	assert.Less(t, count, first.Chunks)
	assert.Equal(t, count, f.vectors.Count())
	assert.Equal(t, count, f.lexical.Stats().DocumentCount)
}

func TestCoordinator_RemoveDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	require.NoError(t, f.coordinator.RemoveDocument(ctx, "ramayana.txt"))

	remaining, err := f.chunks.GetChunksByFile(ctx, "ramayana.txt")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	kept, err := f.chunks.GetChunksByFile(ctx, "mahabharata.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, kept)
}

func TestCoordinator_EmptyCorpusIsAnError(t *testing.T) {
	f := newFixture(t)
	empty := t.TempDir()

	_, err := f.coordinator.IndexCorpus(context.Background(), empty, false)

	require.Error(t, err)
}

func TestCoordinator_ProgressIsReported(t *testing.T) {
	f := newFixture(t)
	var stages []string
	f.coordinator.cfg.Progress = func(fileName, stage string, done, total int) {
		stages = append(stages, stage)
	}

	_, err := f.coordinator.IndexCorpus(context.Background(), f.docsDir, false)

	require.NoError(t, err)
	assert.Contains(t, stages, "embed")
}

func TestVerifyModelIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unindexed store passes", func(t *testing.T) {
		assert.NoError(t, VerifyModelIdentity(ctx, f.chunks, embed.NewStaticEmbedder()))
	})

	_, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	t.Run("matching embedder passes", func(t *testing.T) {
		assert.NoError(t, VerifyModelIdentity(ctx, f.chunks, embed.NewStaticEmbedder()))
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		err := VerifyModelIdentity(ctx, f.chunks, &wrongDimEmbedder{})
		require.Error(t, err)
	})
}

// wrongDimEmbedder reports a different vector dimension than the index.
type wrongDimEmbedder struct{ embed.StaticEmbedder }

func (*wrongDimEmbedder) Dimensions() int { return 768 }

func TestConsistencyChecker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.IndexCorpus(ctx, f.docsDir, false)
	require.NoError(t, err)

	checker := NewConsistencyChecker(f.chunks, f.lexical, f.vectors)

	t.Run("fresh index is consistent", func(t *testing.T) {
		result, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.True(t, result.Consistent(), "issues: %v", result.Issues)
	})

	t.Run("missing vectors are detected", func(t *testing.T) {
		chunks, err := f.chunks.GetChunksByFile(ctx, "ramayana.txt")
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		require.NoError(t, f.vectors.Delete(ctx, []string{chunks[0].ID}))

		result, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.False(t, result.Consistent())
	})
}
