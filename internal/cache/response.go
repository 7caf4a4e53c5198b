// Package cache provides the answer response cache: an LRU with TTL expiry
// keyed by normalized query and document filter, persisted to disk so cached
// answers survive restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMaxSize is the default number of cached responses.
	DefaultMaxSize = 500

	// DefaultTTL is how long a cached response stays valid.
	DefaultTTL = 24 * time.Hour

	// persistEvery is how many Sets happen between persistence flushes.
	persistEvery = 10
)

// Entry is a cached answer with its provenance.
type Entry struct {
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	SourceIDs  []string  `json:"source_ids,omitempty"`
	QueryType  string    `json:"query_type,omitempty"`
	FileFilter string    `json:"file_filter,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	HitCount   int       `json:"hit_count"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// FrequentQuery is one row of the frequent-queries report.
type FrequentQuery struct {
	Query    string `json:"query"`
	HitCount int    `json:"hit_count"`
}

// ResponseCache is a thread-safe LRU response cache with TTL expiry.
type ResponseCache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *Entry]
	ttl     time.Duration
	maxSize int
	state   *persistState // nil when persistence is disabled

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	// Set while removing an expired entry so the eviction callback can
	// tell expiry removals apart from capacity evictions.
	expiring bool

	setsSincePersist int
	now              func() time.Time
}

// Option configures the cache.
type Option func(*ResponseCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPersistence enables JSON persistence at the given path.
func WithPersistence(path string) Option {
	return func(c *ResponseCache) {
		if path != "" {
			c.state = newPersistState(path)
		}
	}
}

// withClock injects a clock for expiry tests.
func withClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		c.now = now
	}
}

// New creates a response cache. maxSize <= 0 uses the default.
func New(maxSize int, opts ...Option) (*ResponseCache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	c := &ResponseCache{
		ttl:     DefaultTTL,
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	l, err := lru.NewWithEvict[string, *Entry](maxSize, func(string, *Entry) {
		if !c.expiring {
			c.evictions++
		}
	})
	if err != nil {
		return nil, err
	}
	c.lru = l

	if c.state != nil {
		c.loadFromDisk()
	}

	return c, nil
}

// Key derives the cache key from a query and optional document filter.
// Queries that normalize to the same text share an entry.
func Key(query, fileFilter string) string {
	filter := fileFilter
	if filter == "" {
		filter = "all"
	}
	sum := sha256.Sum256([]byte(normalizeQuery(query) + "|" + filter))
	return hex.EncodeToString(sum[:])[:16]
}

// normalizeQuery lowercases and collapses whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Get returns the cached entry for a query, if present and unexpired.
// Expired entries are removed lazily on access.
func (c *ResponseCache) Get(query, fileFilter string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(query, fileFilter)
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		c.removeExpired(key)
		c.misses++
		return nil, false
	}

	entry.HitCount++
	c.hits++
	return entry, true
}

// Set stores an answer. Persistence is flushed every few writes rather than
// on each one to keep the hot path off disk.
func (c *ResponseCache) Set(query, fileFilter string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.Query = normalizeQuery(query)
	entry.FileFilter = fileFilter
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.lru.Add(Key(query, fileFilter), entry)

	if c.state != nil {
		c.setsSincePersist++
		if c.setsSincePersist >= persistEvery {
			c.persistLocked()
			c.setsSincePersist = 0
		}
	}
}

// Invalidate removes the entries for the given queries. A nil or empty
// slice clears the whole cache; filters are not considered, every filter
// variant of a listed query is dropped.
func (c *ResponseCache) Invalidate(queries []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(queries) == 0 {
		n := c.lru.Len()
		c.expiring = true
		c.lru.Purge()
		c.expiring = false
		return n
	}

	normalized := make(map[string]bool, len(queries))
	for _, q := range queries {
		normalized[normalizeQuery(q)] = true
	}

	removed := 0
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && normalized[entry.Query] {
			c.expiring = true
			c.lru.Remove(key)
			c.expiring = false
			removed++
		}
	}
	return removed
}

// CleanupExpired removes all expired entries and returns how many were
// dropped.
func (c *ResponseCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if c.now().Sub(entry.CreatedAt) > c.ttl {
			c.removeExpired(key)
			removed++
		}
	}
	return removed
}

// removeExpired drops an entry without counting it as a capacity eviction.
// Caller must hold c.mu.
func (c *ResponseCache) removeExpired(key string) {
	c.expiring = true
	c.lru.Remove(key)
	c.expiring = false
	c.expirations++
}

// Stats returns cache effectiveness counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:        c.lru.Len(),
		MaxSize:     c.maxSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// FrequentQueries returns the most-hit cached queries, best first.
func (c *ResponseCache) FrequentQueries(limit int) []FrequentQuery {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rows []FrequentQuery
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && entry.HitCount > 0 {
			rows = append(rows, FrequentQuery{Query: entry.Query, HitCount: entry.HitCount})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].HitCount != rows[j].HitCount {
			return rows[i].HitCount > rows[j].HitCount
		}
		return rows[i].Query < rows[j].Query
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Close flushes any pending persistence.
func (c *ResponseCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil && c.setsSincePersist > 0 {
		c.persistLocked()
		c.setsSincePersist = 0
	}
	return nil
}
