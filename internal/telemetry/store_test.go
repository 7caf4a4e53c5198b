package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

func newTestStore(t *testing.T) *SQLiteMetricsStore {
	t.Helper()
	chunks, err := store.NewSQLiteChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	s, err := NewSQLiteMetricsStore(chunks.DB())
	require.NoError(t, err)
	return s
}

func TestNewSQLiteMetricsStore_NilDB(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil)

	require.Error(t, err)
}

func TestSQLiteMetricsStore_QueryTypeCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveQueryTypeCounts("2026-08-27", map[string]int64{"FACTUAL": 3}))
	require.NoError(t, s.SaveQueryTypeCounts("2026-08-28", map[string]int64{"FACTUAL": 2, "COMPARATIVE": 1}))

	t.Run("range sums across days", func(t *testing.T) {
		counts, err := s.GetQueryTypeCounts("2026-08-27", "2026-08-28")
		require.NoError(t, err)
		assert.Equal(t, int64(5), counts["FACTUAL"])
		assert.Equal(t, int64(1), counts["COMPARATIVE"])
	})

	t.Run("same-day save accumulates", func(t *testing.T) {
		require.NoError(t, s.SaveQueryTypeCounts("2026-08-28", map[string]int64{"FACTUAL": 7}))

		counts, err := s.GetQueryTypeCounts("2026-08-28", "2026-08-28")
		require.NoError(t, err)
		assert.Equal(t, int64(9), counts["FACTUAL"])
	})
}

func TestSQLiteMetricsStore_RouteCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRouteCounts("2026-08-28", map[string]int64{
		"fast_factual": 10,
		"deep_analysis": 2,
	}))

	counts, err := s.GetRouteCounts("2026-08-28", "2026-08-28")

	require.NoError(t, err)
	assert.Equal(t, int64(10), counts["fast_factual"])
	assert.Equal(t, int64(2), counts["deep_analysis"])
}

func TestSQLiteMetricsStore_TermCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertTermCounts(map[string]int64{"rama": 5, "sita": 3}))
	require.NoError(t, s.UpsertTermCounts(map[string]int64{"rama": 9}))

	terms, err := s.GetTopTerms(10)

	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, TermCount{Term: "rama", Count: 14}, terms[0])
	assert.Equal(t, TermCount{Term: "sita", Count: 3}, terms[1])
}

func TestSQLiteMetricsStore_ZeroResultQueries(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	for i := 0; i < 105; i++ {
		require.NoError(t, s.AddZeroResultQuery("query", now))
	}
	require.NoError(t, s.AddZeroResultQuery("latest", now))

	queries, err := s.GetZeroResultQueries(5)
	require.NoError(t, err)
	require.Len(t, queries, 5)
	assert.Equal(t, "latest", queries[0])

	// The buffer is trimmed to the most recent 100 entries.
	all, err := s.GetZeroResultQueries(1000)
	require.NoError(t, err)
	assert.Len(t, all, 100)
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveLatencyCounts("2026-08-28", map[LatencyBucket]int64{
		BucketP10: 40,
		BucketP50: 8,
	}))

	counts, err := s.GetLatencyCounts("2026-08-28", "2026-08-28")

	require.NoError(t, err)
	assert.Equal(t, int64(40), counts[BucketP10])
	assert.Equal(t, int64(8), counts[BucketP50])
}

func TestQueryMetrics_FlushPersists(t *testing.T) {
	s := newTestStore(t)
	m := NewQueryMetricsWithConfig(s, QueryMetricsConfig{FlushInterval: 0})

	m.Record(QueryEvent{
		Query:       "Who killed Ravana?",
		QueryType:   "FACTUAL",
		Route:       "fast_factual",
		ResultCount: 5,
		Latency:     8 * time.Millisecond,
	})

	require.NoError(t, m.Close())

	today := time.Now().Format("2006-01-02")
	types, err := s.GetQueryTypeCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), types["FACTUAL"])

	routes, err := s.GetRouteCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), routes["fast_factual"])

	terms, err := s.GetTopTerms(10)
	require.NoError(t, err)
	assert.NotEmpty(t, terms)

	latencies, err := s.GetLatencyCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latencies[BucketP10])

	// A second flush has nothing left to add.
	require.NoError(t, m.Flush())
	types, err = s.GetQueryTypeCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), types["FACTUAL"])
}
