package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{49 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{200 * time.Millisecond, BucketP500},
		{500 * time.Millisecond, BucketP1000},
		{3 * time.Second, BucketP1000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), "latency %v", tt.latency)
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"content words survive", "Who killed Ravana?", []string{"killed", "ravana"}},
		{"stopwords and short words drop", "What is the name of it?", []string{"name"}},
		{"punctuation splits", "Rama,Sita and Lakshmana", []string{"rama", "sita", "lakshmana"}},
		{"empty query", "   ", nil},
		{"only stopwords", "what is the", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

func TestCircularBuffer(t *testing.T) {
	t.Run("fifo order before wrap", func(t *testing.T) {
		b := NewCircularBuffer[int](3)
		b.Add(1)
		b.Add(2)

		assert.Equal(t, []int{1, 2}, b.Items())
		assert.Equal(t, 2, b.Size())
	})

	t.Run("oldest evicted after wrap", func(t *testing.T) {
		b := NewCircularBuffer[int](3)
		for i := 1; i <= 5; i++ {
			b.Add(i)
		}

		assert.Equal(t, []int{3, 4, 5}, b.Items())
		assert.Equal(t, 3, b.Size())
	})

	t.Run("clear resets", func(t *testing.T) {
		b := NewCircularBuffer[int](3)
		b.Add(1)
		b.Clear()

		assert.Empty(t, b.Items())
		assert.Zero(t, b.Size())
	})
}

func TestQueryMetrics_Record(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})

	// Given: a mix of answered, degraded, cached, and empty queries
	m.Record(QueryEvent{
		Query:         "Who killed Ravana?",
		QueryType:     "FACTUAL",
		Route:         "fast_factual",
		ResultCount:   5,
		DiversityGain: 0.4,
		Latency:       8 * time.Millisecond,
	})
	m.Record(QueryEvent{
		Query:         "Compare Rama and Krishna",
		QueryType:     "COMPARATIVE",
		Route:         "comparative_analysis",
		ResultCount:   10,
		Degraded:      true,
		DiversityGain: 0.2,
		Latency:       120 * time.Millisecond,
	})
	m.Record(QueryEvent{
		Query:       "Who killed Ravana?",
		QueryType:   "FACTUAL",
		Route:       "fast_factual",
		ResultCount: 5,
		FromCache:   true,
		Latency:     time.Millisecond,
	})
	m.Record(QueryEvent{
		Query:     "xyzzy plugh",
		QueryType: "FACTUAL",
		Route:     "fast_factual",
		Latency:   30 * time.Millisecond,
	})

	s := m.Snapshot()

	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(3), s.QueryTypeCounts["FACTUAL"])
	assert.Equal(t, int64(1), s.QueryTypeCounts["COMPARATIVE"])
	assert.Equal(t, int64(3), s.RouteCounts["fast_factual"])
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, []string{"xyzzy plugh"}, s.ZeroResultQueries)
	assert.Equal(t, int64(1), s.DegradedCount)
	assert.Equal(t, int64(1), s.CacheHitCount)
	assert.Equal(t, int64(2), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP500])
	assert.InDelta(t, 25.0, s.ZeroResultPercentage(), 0.01)
	assert.InDelta(t, 0.25, s.CacheHitRate(), 0.01)
	assert.InDelta(t, 0.15, s.AvgDiversityGain, 1e-9)
}

func TestQueryMetrics_TopTermsSorted(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	for i := 0; i < 3; i++ {
		m.Record(QueryEvent{Query: "ravana lanka", ResultCount: 1})
	}
	m.Record(QueryEvent{Query: "ravana sita", ResultCount: 1})

	terms := m.Snapshot().TopTerms

	require.NotEmpty(t, terms)
	assert.Equal(t, TermCount{Term: "ravana", Count: 4}, terms[0])
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(QueryEvent{Query: "rama", QueryType: "FACTUAL", ResultCount: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_RecordAfterCloseIsIgnored(t *testing.T) {
	m := NewQueryMetrics(nil)
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "rama", ResultCount: 1})

	assert.Zero(t, m.Snapshot().TotalQueries)
}

func TestQueryMetrics_CloseIsIdempotent(t *testing.T) {
	m := NewQueryMetrics(nil)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestSnapshot_EmptyRates(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	s := m.Snapshot()

	assert.Zero(t, s.ZeroResultPercentage())
	assert.Zero(t, s.CacheHitRate())
	assert.Zero(t, s.AvgDiversityGain)
}
