package search

import (
	"sort"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains.
const DefaultRRFConstant = 60

// Fuser combines lexical and vector results into a single ranked list.
type Fuser struct {
	Method  FusionMethod
	K       int     // RRF smoothing constant
	Weights Weights // per-leg weights, used by weighted fusion only
}

// NewFuser creates a fuser. Zero values fall back to RRF with k=60 and
// the default leg weights.
func NewFuser(method FusionMethod, k int, weights Weights) *Fuser {
	if method == "" {
		method = FusionRRF
	}
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if weights.Lexical == 0 && weights.Vector == 0 {
		weights = DefaultWeights()
	}
	return &Fuser{Method: method, K: k, Weights: weights}
}

// Fuse combines the two retrieval legs. Either leg may be empty; a single
// populated leg degrades to that leg's ranking.
//
// Results are ordered fused score desc, then in-both-legs first, then
// lexical score desc, then chunk ID asc so equal inputs always produce
// identical output.
func (f *Fuser) Fuse(lex []*store.LexicalResult, vec []*store.VectorResult) []*Candidate {
	// Empty slice, not nil, for consistent API behavior
	if len(lex) == 0 && len(vec) == 0 {
		return []*Candidate{}
	}

	switch f.Method {
	case FusionWeighted:
		return f.fuseWeighted(lex, vec)
	default:
		return f.fuseRRF(lex, vec)
	}
}

// fuseRRF scores each document by the sum over the lists it appears in of
// 1/(k+rank). Rank-based scoring is robust to the incomparable score
// scales of BM25 and cosine similarity; the legs contribute equally, and
// appearing in both is what lifts a document to the top.
func (f *Fuser) fuseRRF(lex []*store.LexicalResult, vec []*store.VectorResult) []*Candidate {
	byID := make(map[string]*Candidate, len(lex)+len(vec))

	for rank, r := range lex {
		c := getOrCreate(byID, r.DocID)
		c.LexScore = r.Score
		c.LexRank = rank + 1
		c.MatchedTerms = r.MatchedTerms
		c.FusedScore += 1.0 / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		c := getOrCreate(byID, r.ID)
		c.VecScore = float64(r.Score)
		c.VecRank = rank + 1
		c.FusedScore += 1.0 / float64(f.K+rank+1)
		if c.LexRank > 0 {
			c.InBothLegs = true
		}
	}

	return f.finish(byID)
}

// fuseWeighted interpolates normalized per-leg scores:
// fused = vectorWeight*vectorSim + lexicalWeight*lexicalSim.
// Vector similarity maps cosine distance to [0,1]; lexical scores are
// normalized by the batch maximum since BM25 is unbounded.
func (f *Fuser) fuseWeighted(lex []*store.LexicalResult, vec []*store.VectorResult) []*Candidate {
	byID := make(map[string]*Candidate, len(lex)+len(vec))

	var maxLex float64
	for _, r := range lex {
		if r.Score > maxLex {
			maxLex = r.Score
		}
	}

	for rank, r := range lex {
		c := getOrCreate(byID, r.DocID)
		c.LexScore = r.Score
		c.LexRank = rank + 1
		c.MatchedTerms = r.MatchedTerms

		norm := 0.0
		if maxLex > 0 {
			norm = r.Score / maxLex
		}
		c.FusedScore += f.Weights.Lexical * norm
	}

	for rank, r := range vec {
		c := getOrCreate(byID, r.ID)
		c.VecScore = float64(r.Score)
		c.VecRank = rank + 1

		sim := 1.0 - float64(r.Distance)/2.0
		if sim < 0 {
			sim = 0
		}
		c.FusedScore += f.Weights.Vector * sim
		if c.LexRank > 0 {
			c.InBothLegs = true
		}
	}

	return f.finish(byID)
}

// finish sorts deterministically, normalizes to 0-1, and seeds the working
// score from the fused score.
func (f *Fuser) finish(byID map[string]*Candidate) []*Candidate {
	results := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		return compareCandidates(results[i], results[j])
	})

	if len(results) > 0 {
		if max := results[0].FusedScore; max > 0 {
			for _, c := range results {
				c.FusedScore /= max
			}
		}
	}

	for _, c := range results {
		c.Score = c.FusedScore
	}

	return results
}

func getOrCreate(m map[string]*Candidate, id string) *Candidate {
	if c, ok := m[id]; ok {
		return c
	}
	c := &Candidate{Chunk: &store.Chunk{ID: id}}
	m[id] = c
	return c
}

// compareCandidates reports whether a ranks before b.
//
// Priority:
//  1. Higher fused score
//  2. In both legs (true before false)
//  3. Higher lexical score (exact name match indicator)
//  4. Lexicographically smaller chunk ID (deterministic)
func compareCandidates(a, b *Candidate) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.InBothLegs != b.InBothLegs {
		return a.InBothLegs
	}
	if a.LexScore != b.LexScore {
		return a.LexScore > b.LexScore
	}
	return a.Chunk.ID < b.Chunk.ID
}
