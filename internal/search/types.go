// Package search implements the adaptive retrieval pipeline: query
// classification, strategy routing, decomposition, hybrid BM25+vector
// retrieval with RRF fusion, domain-aware score adjustment, and MMR
// diversity filtering.
package search

import (
	"time"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

// QueryType is the classification category for a user question.
type QueryType string

const (
	// QueryTypeFactual is a direct who/what/when/where question.
	QueryTypeFactual QueryType = "FACTUAL"

	// QueryTypeComparative asks to compare or contrast entities.
	QueryTypeComparative QueryType = "COMPARATIVE"

	// QueryTypeAnalytical asks why or how, seeking causes and motives.
	QueryTypeAnalytical QueryType = "ANALYTICAL"

	// QueryTypeSummarization asks for an overview of a story or section.
	QueryTypeSummarization QueryType = "SUMMARIZATION"

	// QueryTypeMultiHop needs facts connected across passages.
	QueryTypeMultiHop QueryType = "MULTI_HOP"

	// QueryTypeConversational is a short follow-up relying on context.
	QueryTypeConversational QueryType = "CONVERSATIONAL"
)

// Complexity grades how much work a query needs.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Classification is the classifier's verdict on a query.
type Classification struct {
	Type       QueryType
	Confidence float64
	Complexity Complexity
}

// Strategy is the retrieval plan the router derives from a classification.
type Strategy struct {
	// TopK is how many chunks the final answer should draw on.
	TopK int

	// Decompose requests splitting the query into sub-questions.
	Decompose bool

	// UseContext requests conversation context for short follow-ups.
	UseContext bool

	// ResponseMode shapes the generated answer: "direct", "detailed",
	// "analytical", "summary", "narrative".
	ResponseMode string

	// Route names the pipeline variant, recorded in stats and logs.
	Route string

	// RerankTopK is how many fused candidates the reranker sees.
	RerankTopK int
}

// Candidate is a chunk moving through the scoring pipeline.
type Candidate struct {
	Chunk *store.Chunk

	// Score is the current adjusted score. Starts as the fused score and
	// is modified in place by boost, bias, and quality stages.
	Score float64

	// FusedScore is the post-fusion score before any adjustment.
	FusedScore float64

	// LexScore and VecScore are the per-leg scores before fusion.
	LexScore float64
	VecScore float64

	// LexRank and VecRank are 1-indexed list positions (0 if absent).
	LexRank int
	VecRank int

	// InBothLegs marks candidates found by both retrieval legs.
	InBothLegs bool

	// MatchedTerms are the lexical terms that hit this chunk.
	MatchedTerms []string

	// Quality is the content quality score (0-1), set by the quality stage.
	Quality float64

	// Epic is the inferred source epic ("ramayana", "mahabharata", "").
	Epic string
}

// Result is a final ranked answer source returned to callers.
type Result struct {
	Chunk        *store.Chunk
	Score        float64
	LexScore     float64
	VecScore     float64
	InBothLegs   bool
	MatchedTerms []string
}

// Response is the full outcome of an engine query.
type Response struct {
	Query          string
	RequestID      string
	Classification Classification
	Strategy       Strategy
	SubQueries     []string
	Results        []*Result
	Degraded       bool // vector-only or lexical-only fallback was used
	DiversityGain  float64
	Took           time.Duration
	FromCache      bool
}

// FusionMethod selects how the two retrieval legs are combined.
type FusionMethod string

const (
	// FusionRRF is rank-based reciprocal rank fusion (default).
	FusionRRF FusionMethod = "rrf"

	// FusionWeighted is score-based weighted interpolation.
	FusionWeighted FusionMethod = "weighted"
)

// Weights configures the relative importance of the two retrieval legs.
type Weights struct {
	// Lexical is the BM25 leg weight (0-1, default: 0.35).
	Lexical float64

	// Vector is the semantic leg weight (0-1, default: 0.65).
	Vector float64
}

// DefaultWeights returns the default leg weights. Narrative questions
// lean semantic; proper names still reward the lexical leg.
func DefaultWeights() Weights {
	return Weights{
		Lexical: 0.35,
		Vector:  0.65,
	}
}
