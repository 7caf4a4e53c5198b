package search

import (
	"sync"
)

// Route names recorded in stats and logs.
const (
	RouteFastFactual     = "fast_factual"
	RouteDetailedFactual = "detailed_factual"
	RouteComparative     = "comparative_analysis"
	RouteDeepAnalysis    = "deep_analysis"
	RouteSummarization   = "summarization"
	RouteMultiHop        = "multi_hop_reasoning"
	RouteConversational  = "conversational"
	RouteStandard        = "standard"
)

// maxTopK caps the complexity-doubled retrieval depth.
const maxTopK = 20

// Router turns a classification into a retrieval strategy and tracks which
// routes actually fire in production.
type Router struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewRouter creates a router.
func NewRouter() *Router {
	return &Router{counts: make(map[string]int64)}
}

// Route derives the retrieval strategy for a classified query.
func (r *Router) Route(cls Classification) Strategy {
	var s Strategy

	switch cls.Type {
	case QueryTypeFactual:
		s = Strategy{TopK: 5, ResponseMode: "direct", Route: RouteFastFactual}
	case QueryTypeComparative:
		s = Strategy{TopK: 10, Decompose: true, ResponseMode: "detailed", Route: RouteComparative}
	case QueryTypeAnalytical:
		s = Strategy{TopK: 8, Decompose: true, ResponseMode: "analytical", Route: RouteDeepAnalysis}
	case QueryTypeSummarization:
		s = Strategy{TopK: 15, ResponseMode: "summary", Route: RouteSummarization}
	case QueryTypeMultiHop:
		s = Strategy{TopK: 10, Decompose: true, ResponseMode: "narrative", Route: RouteMultiHop}
	case QueryTypeConversational:
		s = Strategy{TopK: 5, UseContext: true, ResponseMode: "direct", Route: RouteConversational}
	default:
		s = Strategy{TopK: 10, ResponseMode: "direct", Route: RouteStandard}
	}

	// Complex queries get double the depth and are always decomposed.
	if cls.Complexity == ComplexityComplex {
		s.TopK *= 2
		if s.TopK > maxTopK {
			s.TopK = maxTopK
		}
		s.Decompose = true
		if s.Route == RouteFastFactual {
			s.Route = RouteDetailedFactual
		}
	}

	s.RerankTopK = rerankDepth(s.TopK)

	r.mu.Lock()
	r.counts[s.Route]++
	r.mu.Unlock()

	return s
}

// rerankDepth is how many fused candidates the reranker should see.
func rerankDepth(topK int) int {
	depth := topK * 2
	if depth < 10 {
		depth = 10
	}
	return depth
}

// OptimizeForCorpus adjusts a strategy to the indexed corpus size. Tiny
// corpora can afford to score everything; very large ones cap the rerank
// window to keep latency bounded.
func (r *Router) OptimizeForCorpus(s Strategy, corpusSize int) Strategy {
	if corpusSize > 0 && corpusSize < 100 {
		widened := s.TopK * 2
		if widened > corpusSize {
			widened = corpusSize
		}
		s.TopK = widened
		s.RerankTopK = rerankDepth(s.TopK)
	}
	if corpusSize > 10000 && s.RerankTopK > 50 {
		s.RerankTopK = 50
	}
	return s
}

// RouteCounts returns a copy of the per-route dispatch counters.
func (r *Router) RouteCounts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// ResponseInstruction returns the prompt instruction for a response mode.
// The generator is told how to shape its answer, not what the answer is.
func ResponseInstruction(mode string) string {
	switch mode {
	case "direct":
		return "Answer the question directly and concisely using only the provided passages. Cite the source passage numbers."
	case "detailed":
		return "Answer thoroughly, addressing each part of the question. Draw explicit comparisons where the question asks for them, citing passage numbers."
	case "analytical":
		return "Explain the causes, motivations, and significance behind the question using the provided passages. Cite passage numbers for each claim."
	case "summary":
		return "Summarize the relevant events from the provided passages in order, covering the main points without inventing details."
	case "narrative":
		return "Trace the chain of events across the provided passages step by step, connecting causes to outcomes and citing passage numbers."
	default:
		return "Answer using only the provided passages and cite the passage numbers you relied on."
	}
}
