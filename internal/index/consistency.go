package index

import (
	"context"
	"fmt"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

// CheckResult reports whether the three indexes agree.
type CheckResult struct {
	ChunkCount   int
	LexicalCount int
	VectorCount  int
	Issues       []string
}

// Consistent reports whether no issues were found.
func (r *CheckResult) Consistent() bool { return len(r.Issues) == 0 }

// ConsistencyChecker detects drift between the chunk store, the lexical
// index, and the vector index after a crash or partial reindex.
type ConsistencyChecker struct {
	chunks  store.ChunkStore
	lexical store.LexicalIndex
	vectors store.VectorIndex
}

// NewConsistencyChecker creates a checker over the three indexes.
func NewConsistencyChecker(chunks store.ChunkStore, lexical store.LexicalIndex, vectors store.VectorIndex) *ConsistencyChecker {
	return &ConsistencyChecker{chunks: chunks, lexical: lexical, vectors: vectors}
}

// Check compares document counts and verifies every chunk has a vector.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	result := &CheckResult{}

	count, err := c.chunks.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	result.ChunkCount = count

	if stats := c.lexical.Stats(); stats != nil {
		result.LexicalCount = stats.DocumentCount
	}
	result.VectorCount = c.vectors.Count()

	if result.LexicalCount != result.ChunkCount {
		result.Issues = append(result.Issues, fmt.Sprintf(
			"lexical index has %d documents, chunk store has %d",
			result.LexicalCount, result.ChunkCount))
	}
	if result.VectorCount != result.ChunkCount {
		result.Issues = append(result.Issues, fmt.Sprintf(
			"vector index has %d vectors, chunk store has %d",
			result.VectorCount, result.ChunkCount))
	}

	// Spot-check vector membership per document; a count match can still
	// hide a swap between two equally sized documents.
	docs, err := c.chunks.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		chunks, err := c.chunks.GetChunksByFile(ctx, doc.FileName)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", doc.FileName, err)
		}
		missing := 0
		for _, ch := range chunks {
			if !c.vectors.Contains(ch.ID) {
				missing++
			}
		}
		if missing > 0 {
			result.Issues = append(result.Issues, fmt.Sprintf(
				"%s: %d of %d chunks missing from vector index",
				doc.FileName, missing, len(chunks)))
		}
	}

	return result, nil
}
