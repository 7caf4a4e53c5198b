package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/ayodhya-labs/itihasa/internal/errors"
)

// Fan-out limits.
const (
	// normalConcurrency bounds parallel sub-query retrievals.
	normalConcurrency = 3

	// deepConcurrency is the wider bound for deep search mode.
	deepConcurrency = 5

	// deepResultMultiplier caps the merged pool at topK times this in
	// deep mode; normal mode caps at topK.
	deepResultMultiplier = 2.0
)

// retrieveFunc runs one sub-query and returns its fused candidates.
type retrieveFunc func(ctx context.Context, query string, limit int) ([]*Candidate, error)

// fanOut retrieves all sub-queries concurrently and merges the results.
//
// Duplicates (same chunk from different sub-queries) keep their best score.
// Partial failure is tolerated: as long as one sub-query succeeds, the
// merged pool is returned and the failures are logged. All failing is an
// error.
func fanOut(ctx context.Context, subQueries []string, limit int, deep bool, retrieve retrieveFunc) ([]*Candidate, error) {
	if len(subQueries) == 0 {
		return []*Candidate{}, nil
	}
	if len(subQueries) == 1 {
		return retrieve(ctx, subQueries[0], limit)
	}

	concurrency := normalConcurrency
	if deep {
		concurrency = deepConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	perQuery := make([][]*Candidate, len(subQueries))
	var failures []error

	for i, sub := range subQueries {
		i, sub := i, sub
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			results, err := retrieve(gctx, sub, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Collect instead of failing the group; one bad leg must
				// not sink the whole query.
				failures = append(failures, apperrors.PartialFailureError(sub, err))
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(failures) == len(subQueries) {
		return nil, failures[0]
	}
	for _, f := range failures {
		slog.Warn("subquery_failed", slog.String("error", f.Error()))
	}

	merged := mergeCandidates(perQuery)

	maxPool := limit
	if deep {
		maxPool = int(float64(limit) * deepResultMultiplier)
	}
	if maxPool > 0 && len(merged) > maxPool {
		merged = merged[:maxPool]
	}
	return merged, nil
}

// mergeCandidates flattens per-sub-query results, deduplicating by chunk
// ID and by exact text. The surviving entry keeps the best score; the
// output is sorted by that score.
func mergeCandidates(perQuery [][]*Candidate) []*Candidate {
	byID := make(map[string]*Candidate)
	byText := make(map[string]*Candidate)

	keepBest := func(c *Candidate) {
		if c.Chunk == nil {
			return
		}
		if prev, ok := byID[c.Chunk.ID]; ok {
			if c.Score > prev.Score {
				*prev = *c
			}
			return
		}
		if c.Chunk.Text != "" {
			if prev, ok := byText[c.Chunk.Text]; ok {
				if c.Score > prev.Score {
					*prev = *c
				}
				return
			}
		}
		byID[c.Chunk.ID] = c
		if c.Chunk.Text != "" {
			byText[c.Chunk.Text] = c
		}
	}

	for _, results := range perQuery {
		for _, c := range results {
			keepBest(c)
		}
	}

	merged := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		return compareCandidates(merged[i], merged[j])
	})
	return merged
}
