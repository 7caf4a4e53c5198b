package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/cache"
	"github.com/ayodhya-labs/itihasa/internal/embed"
	"github.com/ayodhya-labs/itihasa/internal/index"
	"github.com/ayodhya-labs/itihasa/internal/search"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

// These tests run the whole pipeline end to end: chunk, index, and
// query a small corpus through the real stores.

const ramayanaDoc = `Rama was the eldest son of king Dasharatha of Ayodhya,
beloved by the people for his virtue and his skill with the bow.
Ravana carried Sita away to Lanka, and Rama slew him in battle
with an arrow blessed by the gods.

Hanuman leapt across the sea to Lanka and found Sita in the
ashoka grove, grieving but unbroken.`

const mahabharataDoc = `Krishna counseled Arjuna on the field of Kurukshetra
when the archer laid down his bow before the assembled armies.

Yudhishthira staked and lost Draupadi in the game of dice,
and the insult in the hall set the Pandavas on the road to war.`

func writeCorpus(t *testing.T) (dataDir, docsDir string) {
	t.Helper()
	root := t.TempDir()
	dataDir = filepath.Join(root, ".itihasa")
	docsDir = filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "ramayana.txt"), []byte(ramayanaDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "mahabharata.txt"), []byte(mahabharataDoc), 0o644))
	return dataDir, docsDir
}

func openIndexes(t *testing.T, dataDir string, dims int) *store.Snapshot {
	t.Helper()
	chunks, err := store.NewSQLiteChunkStore(filepath.Join(dataDir, "chunks.db"))
	require.NoError(t, err)

	lexical, err := store.NewBleveLexicalIndex(filepath.Join(dataDir, "bleve"), store.DefaultLexicalConfig())
	require.NoError(t, err)

	vectors, err := store.NewHNSWIndex(store.DefaultVectorConfig(dims))
	require.NoError(t, err)

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if _, err := os.Stat(vectorPath); err == nil {
		require.NoError(t, vectors.Load(vectorPath))
	}

	return &store.Snapshot{Chunks: chunks, Lexical: lexical, Vector: vectors}
}

func closeIndexes(snap *store.Snapshot) {
	_ = snap.Lexical.Close()
	_ = snap.Vector.Close()
	_ = snap.Chunks.Close()
}

func indexCorpus(t *testing.T, ctx context.Context, snap *store.Snapshot, embedder embed.Embedder, dataDir, docsDir string) {
	t.Helper()
	coordinator, err := index.NewCoordinator(index.Config{
		Chunks:     snap.Chunks,
		Lexical:    snap.Lexical,
		Vectors:    snap.Vector,
		Embedder:   embedder,
		VectorPath: filepath.Join(dataDir, "vectors.hnsw"),
	})
	require.NoError(t, err)

	result, err := coordinator.IndexCorpus(ctx, docsDir, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Documents)
}

func newTestEngine(snap *store.Snapshot, embedder embed.Embedder) *search.Engine {
	return search.NewEngine(search.DefaultEngineConfig(), embedder, func() *store.Snapshot { return snap })
}

func TestIntegration_IndexThenQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	dataDir, docsDir := writeCorpus(t)

	embedder := embed.NewStaticEmbedder()
	snap := openIndexes(t, dataDir, embedder.Dimensions())
	t.Cleanup(func() { closeIndexes(snap) })
	indexCorpus(t, ctx, snap, embedder, dataDir, docsDir)

	engine := newTestEngine(snap, embedder)

	// When: asking a factual question about the corpus
	resp, err := engine.Query(ctx, "Who killed Ravana?", search.Options{})

	// Then: the Ramayana passage about Ravana's death comes back
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, search.QueryTypeFactual, resp.Classification.Type)
	assert.Equal(t, "ramayana.txt", resp.Results[0].Chunk.FileName)
	assert.False(t, resp.Degraded)
}

func TestIntegration_FileFilterRestrictsSources(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	dataDir, docsDir := writeCorpus(t)

	embedder := embed.NewStaticEmbedder()
	snap := openIndexes(t, dataDir, embedder.Dimensions())
	t.Cleanup(func() { closeIndexes(snap) })
	indexCorpus(t, ctx, snap, embedder, dataDir, docsDir)

	engine := newTestEngine(snap, embedder)

	// Both epics mention a bow; the filter pins retrieval to one of them.
	resp, err := engine.Query(ctx, "the bow", search.Options{FileFilter: "mahabharata.txt"})

	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, "mahabharata.txt", r.Chunk.FileName)
	}
}

func TestIntegration_IndexPersistsAcrossReopen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	dataDir, docsDir := writeCorpus(t)

	embedder := embed.NewStaticEmbedder()
	snap := openIndexes(t, dataDir, embedder.Dimensions())
	indexCorpus(t, ctx, snap, embedder, dataDir, docsDir)
	closeIndexes(snap)

	// A fresh process opens the persisted indexes from disk.
	reopened := openIndexes(t, dataDir, embedder.Dimensions())
	t.Cleanup(func() { closeIndexes(reopened) })

	engine := newTestEngine(reopened, embedder)
	resp, err := engine.Query(ctx, "game of dice", search.Options{})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "mahabharata.txt", resp.Results[0].Chunk.FileName)
}

// stubGenerator is a canned AnswerGenerator for exercising the answer
// pipeline without Ollama.
type stubGenerator struct {
	answer    string
	available bool
	calls     int
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.answer, nil
}

func (g *stubGenerator) ModelName() string { return "stub" }

func (g *stubGenerator) Available(_ context.Context) bool { return g.available }

func TestIntegration_AskCachesGeneratedAnswers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	dataDir, docsDir := writeCorpus(t)

	embedder := embed.NewStaticEmbedder()
	snap := openIndexes(t, dataDir, embedder.Dimensions())
	t.Cleanup(func() { closeIndexes(snap) })
	indexCorpus(t, ctx, snap, embedder, dataDir, docsDir)

	engine := newTestEngine(snap, embedder)
	generator := &stubGenerator{answer: "Rama killed Ravana in battle. [1]", available: true}
	responseCache, err := cache.New(10)
	require.NoError(t, err)
	answerer := search.NewAnswerer(engine, generator, responseCache)

	// First ask generates and caches.
	first, err := answerer.Ask(ctx, "Who killed Ravana?", search.AskOptions{})
	require.NoError(t, err)
	assert.True(t, first.Generated)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.Sources)
	assert.Equal(t, 1, generator.calls)

	// Second ask is served from the cache with hydrated sources.
	second, err := answerer.Ask(ctx, "Who killed Ravana?", search.AskOptions{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)
	assert.NotEmpty(t, second.Sources)
	assert.Equal(t, 1, generator.calls)
}

func TestIntegration_AskDegradesWithoutGenerator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	dataDir, docsDir := writeCorpus(t)

	embedder := embed.NewStaticEmbedder()
	snap := openIndexes(t, dataDir, embedder.Dimensions())
	t.Cleanup(func() { closeIndexes(snap) })
	indexCorpus(t, ctx, snap, embedder, dataDir, docsDir)

	engine := newTestEngine(snap, embedder)
	answerer := search.NewAnswerer(engine, &stubGenerator{available: false}, nil)

	answer, err := answerer.Ask(ctx, "Who killed Ravana?", search.AskOptions{})

	require.NoError(t, err)
	assert.False(t, answer.Generated)
	assert.Empty(t, answer.Text)
	assert.NotEmpty(t, answer.Sources)
}
