// Package telemetry collects local query statistics used by the stats
// command and for tuning retrieval. Nothing is reported externally.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a histogram bucket for end-to-end query latency.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered query as seen by the collector. QueryType and
// Route carry the classifier's and router's labels verbatim.
type QueryEvent struct {
	Query       string
	QueryType   string
	Route       string
	ResultCount int
	Degraded    bool
	FromCache   bool

	// DiversityGain is the fraction of the result set that MMR changed
	// relative to a plain relevance top-k, 0 when selection ran through.
	DiversityGain float64

	Latency   time.Duration
	Timestamp time.Time
}

// IsZeroResult reports whether the query found nothing in the corpus.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// termStopwords are question-scaffolding words that would otherwise dominate
// the top-terms table for a Q&A workload.
var termStopwords = map[string]bool{
	"the": true, "and": true, "was": true, "what": true, "who": true,
	"why": true, "how": true, "did": true, "does": true, "where": true,
	"when": true, "which": true, "whom": true, "are": true, "is": true,
	"of": true, "in": true, "a": true, "an": true, "to": true,
}

// ExtractTerms lowercases a query and keeps the content words, dropping
// punctuation, stopwords, and anything shorter than three characters.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	words := strings.FieldsFunc(query, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var terms []string
	for _, w := range words {
		if len(w) < 3 || termStopwords[w] {
			continue
		}
		terms = append(terms, w)
	}

	if len(terms) == 0 {
		return nil
	}
	return terms
}

// TermCount is a term with its observed frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryMetricsSnapshot is an immutable view of the collected metrics.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[string]int64        `json:"query_type_counts"`
	RouteCounts         map[string]int64        `json:"route_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	DegradedCount       int64                   `json:"degraded_count"`
	CacheHitCount       int64                   `json:"cache_hit_count"`
	AvgDiversityGain    float64                 `json:"avg_diversity_gain"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries with no results.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// CacheHitRate returns the share of queries answered from the cache.
func (s *QueryMetricsSnapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHitCount) / float64(s.TotalQueries)
}

// QueryMetricsStore defines persistence for the aggregated metrics.
type QueryMetricsStore interface {
	// SaveQueryTypeCounts upserts daily counts per classifier label.
	SaveQueryTypeCounts(date string, counts map[string]int64) error

	// GetQueryTypeCounts retrieves summed counts for a date range.
	GetQueryTypeCounts(from, to string) (map[string]int64, error)

	// SaveRouteCounts upserts daily counts per routing strategy.
	SaveRouteCounts(date string, counts map[string]int64) error

	// GetRouteCounts retrieves summed route counts for a date range.
	GetRouteCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts updates term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms retrieves the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records a query that found nothing.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries retrieves recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves the latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases resources.
	Close() error
}

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity    int           // max terms to track (default 100)
	ZeroResultsCapacity int           // max zero-result queries kept (default 100)
	FlushInterval       time.Duration // 0 disables auto-flush
}

// DefaultQueryMetricsConfig returns the defaults used in production.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       60 * time.Second,
	}
}

// QueryMetrics aggregates query events in memory and periodically flushes
// them to a store. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	queryTypes      map[string]int64
	routes          map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	totalQueries     int64
	zeroResultCount  int64
	degradedCount    int64
	cacheHitCount    int64
	diversityGainSum float64
	startTime        time.Time

	store       QueryMetricsStore
	config      QueryMetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with default configuration.
// A nil store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &QueryMetrics{
		queryTypes:  make(map[string]int64),
		routes:      make(map[string]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		startTime:   time.Now(),
		store:       store,
		config:      cfg,
		stopCh:      make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one answered query. Non-blocking.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if event.QueryType != "" {
		m.queryTypes[event.QueryType]++
	}
	if event.Route != "" {
		m.routes[event.Route]++
	}
	m.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}
	if event.Degraded {
		m.degradedCount++
	}
	if event.FromCache {
		m.cacheHitCount++
	}
	m.diversityGainSum += event.DiversityGain

	m.latencies[LatencyToBucket(event.Latency)]++
}

// Snapshot returns the current metrics for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	typeCounts := make(map[string]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		typeCounts[k] = v
	}
	routeCounts := make(map[string]int64, len(m.routes))
	for k, v := range m.routes {
		routeCounts[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	avgGain := 0.0
	if m.totalQueries > 0 {
		avgGain = m.diversityGainSum / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     typeCounts,
		RouteCounts:         routeCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		DegradedCount:       m.degradedCount,
		CacheHitCount:       m.cacheHitCount,
		AvgDiversityGain:    avgGain,
		Since:               m.startTime,
	}
}

// Flush adds the in-memory aggregates to the store and resets them, so
// repeated flushes (and separate processes) accumulate instead of
// double-counting. Safe without a store.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	snapshot := m.Snapshot()
	if snapshot.TotalQueries == 0 {
		return nil
	}
	today := time.Now().Format("2006-01-02")

	if err := m.store.SaveQueryTypeCounts(today, snapshot.QueryTypeCounts); err != nil {
		return err
	}
	if err := m.store.SaveRouteCounts(today, snapshot.RouteCounts); err != nil {
		return err
	}

	termCounts := make(map[string]int64, len(snapshot.TopTerms))
	for _, tc := range snapshot.TopTerms {
		termCounts[tc.Term] = tc.Count
	}
	if err := m.store.UpsertTermCounts(termCounts); err != nil {
		return err
	}

	for _, q := range snapshot.ZeroResultQueries {
		if err := m.store.AddZeroResultQuery(q, time.Now()); err != nil {
			return err
		}
	}

	if err := m.store.SaveLatencyCounts(today, snapshot.LatencyDistribution); err != nil {
		return err
	}

	m.reset()
	return nil
}

func (m *QueryMetrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryTypes = make(map[string]int64)
	m.routes = make(map[string]int64)
	m.topTerms.Purge()
	m.zeroResults.Clear()
	m.latencies = make(map[LatencyBucket]int64)
	m.totalQueries = 0
	m.zeroResultCount = 0
	m.degradedCount = 0
	m.cacheHitCount = 0
	m.diversityGainSum = 0
}

// Close flushes and stops the auto-flush loop.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
