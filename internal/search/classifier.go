package search

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// classifierCacheSize bounds the memoized classification results.
const classifierCacheSize = 256

// maxKeywordConfidence caps keyword-derived confidence below certainty.
const maxKeywordConfidence = 0.95

// typeKeywords maps each query type to its indicator phrases. Multi-word
// phrases are matched as substrings of the normalized query, single words
// against the token set.
var typeKeywords = map[QueryType][]string{
	QueryTypeComparative: {
		"compare", "comparison", "contrast", "versus", "vs",
		"difference", "differences", "similarities", "similar",
		"better", "stronger", "greater",
	},
	QueryTypeAnalytical: {
		"why", "how", "analyze", "analysis", "explain",
		"reason", "cause", "caused", "motivation", "significance",
		"meaning", "symbolize", "represent",
	},
	QueryTypeSummarization: {
		"summarize", "summary", "overview", "outline",
		"briefly", "gist", "main points", "key events",
		"what happens in", "tell me about",
	},
	QueryTypeMultiHop: {
		"led to", "resulted in", "because of", "as a result",
		"consequence", "chain of events", "sequence", "eventually",
		"after which", "in turn",
	},
	QueryTypeFactual: {
		"who", "what", "when", "where", "which", "whom",
		"name", "list", "did",
	},
}

// followUpIndicators open short conversational follow-ups. Bare pronouns
// count: "what about Sita" or "they were exiled" lean on prior turns.
var followUpIndicators = []string{
	"what about", "how about", "and what", "and the",
	"tell me more", "more about", "also",
	"that", "it", "they", "them", "he", "she", "his", "her",
}

// complexMarkers suggest a query needing decomposition or deeper retrieval.
var complexMarkers = []string{
	"analyze", "compare", "contrast", "relationship", "relationships",
	"influence", "impact", "evaluate", "discuss", "role", "throughout",
}

// simpleMarkers suggest a single-fact lookup.
var simpleMarkers = []string{
	"who", "what", "when", "where", "name", "list",
}

// Classifier assigns a query type, confidence, and complexity grade using
// keyword scoring. Rule-based results are memoized by normalized query;
// the set of phrasings users actually type is small.
type Classifier struct {
	cache *lru.Cache[string, Classification]
}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	cache, _ := lru.New[string, Classification](classifierCacheSize)
	return &Classifier{cache: cache}
}

// Classify returns the classification for a standalone query.
func (c *Classifier) Classify(query string) Classification {
	return c.ClassifyWithHistory(query, nil)
}

// ClassifyWithHistory classifies a query within a conversation. A short
// follow-up ("what about sita") is CONVERSATIONAL only when there are
// prior turns to follow up on; the same words as an opening question are
// scored on their keywords. Only the history-independent result is
// memoized.
func (c *Classifier) ClassifyWithHistory(query string, history []string) Classification {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return Classification{Type: QueryTypeFactual, Confidence: 0.5, Complexity: ComplexitySimple}
	}

	if len(history) > 0 && isFollowUp(normalized, strings.Fields(normalized)) {
		return Classification{
			Type:       QueryTypeConversational,
			Confidence: 0.9,
			Complexity: ComplexitySimple,
		}
	}

	if cached, ok := c.cache.Get(normalized); ok {
		return cached
	}

	result := classify(normalized)
	c.cache.Add(normalized, result)
	return result
}

// CacheLen reports how many classifications are memoized.
func (c *Classifier) CacheLen() int {
	return c.cache.Len()
}

func classify(normalized string) Classification {
	words := strings.Fields(normalized)

	tokens := make(map[string]bool, len(words))
	for _, w := range words {
		tokens[w] = true
	}

	bestType := QueryTypeFactual
	bestScore := 0
	// Fixed evaluation order keeps ties deterministic. FACTUAL last so
	// specific types win over the generic question words they contain.
	for _, qt := range []QueryType{
		QueryTypeComparative,
		QueryTypeMultiHop,
		QueryTypeSummarization,
		QueryTypeAnalytical,
		QueryTypeFactual,
	} {
		score := keywordScore(normalized, tokens, typeKeywords[qt])
		if score > bestScore {
			bestScore = score
			bestType = qt
		}
	}

	confidence := 0.5
	if bestScore > 0 {
		confidence = 0.3 * float64(bestScore)
		if confidence > maxKeywordConfidence {
			confidence = maxKeywordConfidence
		}
	}

	return Classification{
		Type:       bestType,
		Confidence: confidence,
		Complexity: gradeComplexity(normalized, words, tokens),
	}
}

// keywordScore counts indicator hits: phrases as substrings, single words
// against the token set so "show" never matches "how".
func keywordScore(normalized string, tokens map[string]bool, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(normalized, kw) {
				score++
			}
		} else if tokens[kw] {
			score++
		}
	}
	return score
}

// isFollowUp reports whether a short query opens with a follow-up indicator.
func isFollowUp(normalized string, words []string) bool {
	if len(words) == 0 || len(words) > 5 {
		return false
	}
	for _, ind := range followUpIndicators {
		if strings.HasPrefix(normalized, ind+" ") || normalized == ind {
			return true
		}
	}
	return false
}

// gradeComplexity marks a query complex when it is long, heavily clause
// structured, or uses more analytical than lookup vocabulary.
func gradeComplexity(normalized string, words []string, tokens map[string]bool) Complexity {
	if len(words) > 15 {
		return ComplexityComplex
	}
	if strings.Count(normalized, ",") >= 2 {
		return ComplexityComplex
	}

	complexHits := keywordScore(normalized, tokens, complexMarkers)
	simpleHits := keywordScore(normalized, tokens, simpleMarkers)
	if complexHits > simpleHits {
		return ComplexityComplex
	}
	return ComplexitySimple
}

// normalizeQuery lowercases, strips edge punctuation from tokens, and
// collapses whitespace. Commas are kept so complexity grading can see
// clause structure.
func normalizeQuery(q string) string {
	fields := strings.Fields(strings.ToLower(q))
	for i, f := range fields {
		fields[i] = strings.Trim(f, "?!.;:")
	}
	return strings.TrimSpace(strings.Join(fields, " "))
}
