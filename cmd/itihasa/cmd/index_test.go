package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRamayana = `Rama was the eldest son of king Dasharatha of Ayodhya,
beloved by the people for his virtue and his skill with the bow.
Ravana carried Sita away to Lanka, and Rama slew him in battle
with an arrow blessed by the gods.`

const testMahabharata = `Krishna counseled Arjuna on the field of Kurukshetra
when the archer laid down his bow before the assembled armies.
Yudhishthira staked and lost Draupadi in the game of dice,
and the insult in the hall set the Pandavas on the road to war.`

// newTestProject lays out a corpus directory the CLI can index offline.
func newTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "ramayana.txt"), []byte(testRamayana), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "mahabharata.txt"), []byte(testMahabharata), 0o644))
	return root
}

func TestIndexCmd_BuildsIndexes(t *testing.T) {
	root := newTestProject(t)

	out, err := execute(t, "index", "--dir", root, "--offline", "--check")

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 documents")
	assert.Contains(t, out, "Indexes consistent")
	assert.FileExists(t, filepath.Join(root, ".itihasa", "chunks.db"))
	assert.FileExists(t, filepath.Join(root, ".itihasa", "vectors.hnsw"))
}

func TestIndexCmd_SecondRunSkipsUnchanged(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "index", "--dir", root, "--offline")

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 0 documents (2 unchanged")
}

func TestIndexCmd_EmptyCorpusFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))

	_, err := execute(t, "index", "--dir", root, "--offline")

	require.Error(t, err)
}

func TestSearchCmd_FindsPassages(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "search", "Who killed Ravana?", "--dir", root, "--offline", "--limit", "3")

	require.NoError(t, err)
	assert.Contains(t, out, "ramayana.txt")
}

func TestSearchCmd_FileFilter(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "search", "the bow", "--dir", root, "--offline",
		"--file", "mahabharata.txt", "--limit", "5")

	require.NoError(t, err)
	assert.NotContains(t, out, "ramayana.txt")
}

func TestSearchCmd_ExplainShowsRoute(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "search", "Who is Rama?", "--dir", root, "--offline", "--explain")

	require.NoError(t, err)
	assert.Contains(t, out, "Route:")
	assert.Contains(t, out, "Type:")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "search", "game of dice", "--dir", root, "--offline", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"file_name"`)
	assert.Contains(t, out, `"score"`)
}

func TestSearchCmd_WithoutIndexFails(t *testing.T) {
	root := newTestProject(t)

	_, err := execute(t, "search", "anything", "--dir", root, "--offline")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "itihasa index")
}

func TestStatsCmd_RecordsSearches(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)
	_, err = execute(t, "search", "Who killed Ravana?", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "stats", "--dir", root)

	require.NoError(t, err)
	assert.Contains(t, out, "FACTUAL")
	assert.Contains(t, out, "ravana")
}

func TestStatsCmd_EmptyTelemetry(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "stats", "--dir", root)

	require.NoError(t, err)
	assert.Contains(t, out, "No queries recorded yet")
}

func TestCacheCmd_StatsAndClear(t *testing.T) {
	root := newTestProject(t)
	_, err := execute(t, "index", "--dir", root, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "cache", "stats", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0")

	out, err = execute(t, "cache", "clear", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 cached answers")
}
