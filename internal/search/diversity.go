package search

import (
	"math"
	"sort"
	"strings"
)

// Diversity defaults.
const (
	// DefaultMMRLambda trades relevance (1.0) against novelty (0.0).
	DefaultMMRLambda = 0.7

	// DefaultSimilarityThreshold is the similarity above which two chunks
	// count as near-duplicates in stats.
	DefaultSimilarityThreshold = 0.85

	// DefaultMaxPerPage caps chunks drawn from one page of one document.
	// Adjacent chunks of the same page usually retell the same scene.
	DefaultMaxPerPage = 2
)

// VectorLookup fetches a stored embedding by chunk ID. Implemented by
// store.VectorIndex.
type VectorLookup interface {
	Vector(id string) ([]float32, bool)
}

// DiversityStats reports what the selection pass did.
type DiversityStats struct {
	Input          int
	Selected       int
	NearDuplicates int
	PageCapped     int

	// Gain is the fraction of the selection that differs from the plain
	// top-k by relevance. Zero means diversification changed nothing.
	Gain float64
}

// Diversifier selects a diverse top-k via Maximal Marginal Relevance, then
// caps per-page representation.
type Diversifier struct {
	Lambda              float64
	SimilarityThreshold float64
	MaxPerPage          int

	// Vectors supplies embeddings for cosine similarity. When nil, or for
	// chunks missing an embedding, token Jaccard similarity is used.
	Vectors VectorLookup
}

// NewDiversifier creates a diversifier with defaults for zero fields.
func NewDiversifier(vectors VectorLookup) *Diversifier {
	return &Diversifier{
		Lambda:              DefaultMMRLambda,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxPerPage:          DefaultMaxPerPage,
		Vectors:             vectors,
	}
}

// Select returns up to k candidates balancing relevance and novelty.
// With k >= len(candidates) the input order is returned unchanged; there
// is nothing to diversify away.
func (d *Diversifier) Select(candidates []*Candidate, k int) ([]*Candidate, DiversityStats) {
	stats := DiversityStats{Input: len(candidates)}

	if k <= 0 || len(candidates) == 0 {
		return []*Candidate{}, stats
	}
	if len(candidates) <= k {
		stats.Selected = len(candidates)
		return candidates, stats
	}

	// Page dedup runs before MMR so the cap frees selection slots for
	// other pages instead of shrinking the final result.
	pool := d.capPages(candidates, &stats)
	if len(pool) <= k {
		stats.Selected = len(pool)
		stats.Gain = diversityGain(candidates, pool, k)
		return pool, stats
	}

	rel := normalizeRelevance(pool)

	selected := make([]*Candidate, 0, k)
	remaining := make([]int, len(pool))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestPos := -1
		bestMMR := math.Inf(-1)

		for pos, ci := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := d.similarity(pool[ci], s)
				if sim > maxSim {
					maxSim = sim
				}
			}

			mmr := d.Lambda*rel[ci] - (1.0-d.Lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = ci
				bestPos = pos
			}
		}

		chosen := pool[bestIdx]
		for _, s := range selected {
			if d.similarity(chosen, s) >= d.SimilarityThreshold {
				stats.NearDuplicates++
				break
			}
		}

		selected = append(selected, chosen)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	stats.Selected = len(selected)
	stats.Gain = diversityGain(candidates, selected, k)
	return selected, stats
}

// diversityGain is the fraction of selected candidates that a plain
// relevance top-k would not have chosen.
func diversityGain(candidates, selected []*Candidate, k int) float64 {
	if k <= 0 || len(selected) == 0 {
		return 0
	}

	ranked := make([]*Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	top := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		if c.Chunk != nil {
			top[c.Chunk.ID] = true
		}
	}

	moved := 0
	for _, c := range selected {
		if c.Chunk == nil || !top[c.Chunk.ID] {
			moved++
		}
	}
	return float64(moved) / float64(k)
}

// capPages enforces MaxPerPage per (file, page) pair, preserving order.
func (d *Diversifier) capPages(candidates []*Candidate, stats *DiversityStats) []*Candidate {
	if d.MaxPerPage <= 0 {
		return candidates
	}

	type pageKey struct {
		file string
		page int
	}
	counts := make(map[pageKey]int)

	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Chunk == nil {
			out = append(out, c)
			continue
		}
		key := pageKey{c.Chunk.FileName, c.Chunk.PageNumber}
		if counts[key] >= d.MaxPerPage {
			stats.PageCapped++
			continue
		}
		counts[key]++
		out = append(out, c)
	}
	return out
}

// normalizeRelevance min-max scales candidate scores to [0,1] so the MMR
// trade-off is stable across fusion methods.
func normalizeRelevance(candidates []*Candidate) []float64 {
	min, max := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}

	rel := make([]float64, len(candidates))
	span := max - min
	for i, c := range candidates {
		if span == 0 {
			rel[i] = 1.0
		} else {
			rel[i] = (c.Score - min) / span
		}
	}
	return rel
}

// similarity prefers cosine over stored embeddings and falls back to token
// Jaccard when either embedding is missing.
func (d *Diversifier) similarity(a, b *Candidate) float64 {
	if d.Vectors != nil && a.Chunk != nil && b.Chunk != nil {
		va, okA := d.Vectors.Vector(a.Chunk.ID)
		vb, okB := d.Vectors.Vector(b.Chunk.ID)
		if okA && okB && len(va) == len(vb) {
			return cosineSimilarity(va, vb)
		}
	}
	return jaccardSimilarity(chunkText(a), chunkText(b))
}

func chunkText(c *Candidate) string {
	if c.Chunk == nil {
		return ""
	}
	return c.Chunk.Text
}

// cosineSimilarity assumes unit-normalized vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		return 0
	}
	return dot
}

// jaccardSimilarity is token-set overlap, a cheap proxy when embeddings
// are unavailable.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,;:!?\"'")] = true
	}
	return set
}
