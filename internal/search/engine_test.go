package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/embed"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

// corpusChunk pairs a passage with its source for test corpus setup.
type corpusChunk struct {
	file string
	page int
	text string
}

var testCorpus = []corpusChunk{
	{"ramayana.txt", 1, "Rama was the eldest son of king Dasharatha of Ayodhya, " +
		"beloved by the people for his virtue and his skill with the bow."},
	{"ramayana.txt", 2, "Sita was carried away to Lanka by Ravana, and Rama " +
		"searched the forests of the south with Lakshmana at his side."},
	{"ramayana.txt", 3, "Hanuman leapt across the ocean to Lanka and found Sita " +
		"sitting in sorrow beneath the ashoka trees of the grove."},
	{"mahabharata.txt", 1, "Krishna counseled Arjuna on the field of Kurukshetra " +
		"when the archer laid down his bow before the assembled armies."},
	{"mahabharata.txt", 2, "Draupadi was staked and lost in the game of dice, and " +
		"the insult in the hall set the Pandavas on the road to war."},
	{"mahabharata.txt", 3, "Bhishma lay upon a bed of arrows for many days, " +
		"waiting for the sun to turn north before giving up his life."},
}

// newTestSnapshot indexes the test corpus into real stores.
func newTestSnapshot(t *testing.T, embedder embed.Embedder) *store.Snapshot {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	chunks := make([]*store.Chunk, 0, len(testCorpus))
	docs := make([]*store.Document, 0, len(testCorpus))
	vdocs := make([]*store.VectorDoc, 0, len(testCorpus))
	for i, cc := range testCorpus {
		id := store.ChunkID(cc.file, i)
		chunks = append(chunks, &store.Chunk{
			ID: id, Text: cc.text, FileName: cc.file, PageNumber: cc.page, ChunkIndex: i,
		})
		docs = append(docs, &store.Document{ID: id, Content: cc.text, FileName: cc.file})

		vec, err := embedder.Embed(ctx, cc.text)
		require.NoError(t, err)
		vdocs = append(vdocs, &store.VectorDoc{ID: id, FileName: cc.file, Vector: vec})
	}

	sql, err := store.NewSQLiteChunkStore(filepath.Join(dir, "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sql.Close() })
	require.NoError(t, sql.SaveChunks(ctx, chunks))

	lex, err := store.NewBleveLexicalIndex(filepath.Join(dir, "bleve"), store.DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })
	require.NoError(t, lex.Index(ctx, docs))

	vec, err := store.NewHNSWIndex(store.DefaultVectorConfig(embedder.Dimensions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vec.Close() })
	require.NoError(t, vec.Add(ctx, vdocs))

	return &store.Snapshot{Lexical: lex, Vector: vec, Chunks: sql}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	embedder := embed.NewStaticEmbedder()
	snap := newTestSnapshot(t, embedder)
	return NewEngine(DefaultEngineConfig(), embedder, func() *store.Snapshot { return snap })
}

func TestEngine_QueryReturnsHydratedResults(t *testing.T) {
	e := newTestEngine(t)

	// When
	resp, err := e.Query(context.Background(), "Who is Rama?", Options{})

	// Then: results carry full chunk text and provenance
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, QueryTypeFactual, resp.Classification.Type)
	for _, r := range resp.Results {
		assert.NotEmpty(t, r.Chunk.Text)
		assert.NotEmpty(t, r.Chunk.FileName)
	}
}

func TestEngine_EmptyQueryIsAnError(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Query(context.Background(), "   ", Options{})

	require.Error(t, err)
}

func TestEngine_NoSnapshotIsAnError(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), embed.NewStaticEmbedder(),
		func() *store.Snapshot { return nil })

	_, err := e.Query(context.Background(), "Who is Rama?", Options{})

	require.Error(t, err)
}

func TestEngine_FileFilterRestrictsSources(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Query(context.Background(), "Who counseled the archer?",
		Options{FileFilter: "mahabharata.txt"})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "mahabharata.txt", r.Chunk.FileName)
	}
}

func TestEngine_TopKOverride(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Query(context.Background(), "Who is Rama?", Options{TopK: 2})

	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 2)
	assert.Equal(t, 2, resp.Strategy.TopK)
}

func TestEngine_ComparativeQueryDecomposes(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Query(context.Background(), "Compare Rama and Krishna", Options{})

	require.NoError(t, err)
	assert.Equal(t, QueryTypeComparative, resp.Classification.Type)
	assert.Len(t, resp.SubQueries, 2)
}

func TestEngine_DegradesWithoutVectorIndex(t *testing.T) {
	// Given: a snapshot with only the lexical leg
	embedder := embed.NewStaticEmbedder()
	snap := newTestSnapshot(t, embedder)
	snap = &store.Snapshot{Lexical: snap.Lexical, Chunks: snap.Chunks}
	e := NewEngine(DefaultEngineConfig(), embedder, func() *store.Snapshot { return snap })

	// When
	resp, err := e.Query(context.Background(), "Who is Rama?", Options{})

	// Then: lexical-only results, flagged degraded
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
	assert.True(t, resp.Degraded)
}

func TestEngine_DegradesWithoutLexicalIndex(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	snap := newTestSnapshot(t, embedder)
	snap = &store.Snapshot{Vector: snap.Vector, Chunks: snap.Chunks}
	e := NewEngine(DefaultEngineConfig(), embedder, func() *store.Snapshot { return snap })

	resp, err := e.Query(context.Background(), "Who is Rama?", Options{})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
	assert.True(t, resp.Degraded)
}

func TestEngine_EpicHardFilterDropsBeforeFusion(t *testing.T) {
	// Given: hard filtering enabled and a query decisively about one epic
	embedder := embed.NewStaticEmbedder()
	snap := newTestSnapshot(t, embedder)
	cfg := DefaultEngineConfig()
	cfg.EpicHardFilter = true
	e := NewEngine(cfg, embedder, func() *store.Snapshot { return snap })

	// When
	resp, err := e.Query(context.Background(), "How did Rama rescue Sita from Lanka?", Options{})

	// Then: no wrong-epic chunk survives into the results
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "ramayana.txt", r.Chunk.FileName)
	}
}

func TestEngine_EpicFilterSoftByDefault(t *testing.T) {
	e := newTestEngine(t)

	// The same decisive query must not drop anything when the hard
	// filter is off; only scores shift.
	resp, err := e.Query(context.Background(), "How did Rama rescue Sita from Lanka?",
		Options{TopK: 6})

	require.NoError(t, err)
	files := make(map[string]bool)
	for _, r := range resp.Results {
		files[r.Chunk.FileName] = true
	}
	assert.True(t, files["mahabharata.txt"], "soft bias should penalize, not remove")
}

func TestEngine_HistoryMarksFollowUpConversational(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Query(context.Background(), "what about Sita",
		Options{History: []string{"Who abducted Sita?"}})

	require.NoError(t, err)
	assert.Equal(t, QueryTypeConversational, resp.Classification.Type)
}

func TestEngine_RouteCountsAccumulate(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Query(context.Background(), "Who is Rama?", Options{})
	require.NoError(t, err)

	counts := e.Router().RouteCounts()
	assert.Equal(t, int64(1), counts[RouteFastFactual])
}

func TestSortByScore_TiebreaksDeterministically(t *testing.T) {
	a := &Candidate{Chunk: &store.Chunk{ID: "a"}, Score: 0.5, FusedScore: 0.5}
	b := &Candidate{Chunk: &store.Chunk{ID: "b"}, Score: 0.5, FusedScore: 0.5, InBothLegs: true}
	c := &Candidate{Chunk: &store.Chunk{ID: "c"}, Score: 0.9, FusedScore: 0.9}

	pool := []*Candidate{a, b, c}
	sortByScore(pool)

	assert.Equal(t, "c", pool[0].Chunk.ID)
	assert.Equal(t, "b", pool[1].Chunk.ID)
	assert.Equal(t, "a", pool[2].Chunk.ID)
}
