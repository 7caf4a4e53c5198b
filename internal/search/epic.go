package search

import (
	"strings"
)

// Epic identifiers inferred from queries and file names.
const (
	EpicRamayana    = "ramayana"
	EpicMahabharata = "mahabharata"
)

// Epic bias defaults.
const (
	// DefaultEpicBoost is added to candidates from the epic the query is
	// about.
	DefaultEpicBoost = 0.20

	// DefaultEpicPenalty is subtracted from candidates of the other epic.
	// Scores never go below zero.
	DefaultEpicPenalty = 0.10

	// DefaultHardFilterMargin is how decisively one epic's cues must
	// outnumber the other's before wrong-epic candidates are dropped
	// outright instead of merely penalized.
	DefaultHardFilterMargin = 2
)

// ramayanaCues and mahabharataCues are query terms that signal which epic
// a question is about. Characters appearing in both epics are listed only
// where they are central.
var ramayanaCues = []string{
	"ramayana", "rama", "sita", "ravana", "hanuman", "lakshmana",
	"bharata", "dasharatha", "ayodhya", "lanka", "vanara", "sugriva",
	"vali", "kaikeyi", "janaka", "mithila", "shurpanakha", "valmiki",
}

var mahabharataCues = []string{
	"mahabharata", "krishna", "arjuna", "bhima", "yudhishthira",
	"draupadi", "duryodhana", "karna", "bhishma", "drona", "pandavas",
	"pandava", "kauravas", "kaurava", "kurukshetra", "hastinapura",
	"gita", "kunti", "gandhari", "shakuni", "abhimanyu", "vyasa",
}

// crossEpicMarkers exempt a query from any epic bias: the user wants
// material from both.
var crossEpicMarkers = []string{
	"compare", "comparison", "difference", "differences", "both",
	"versus", "vs", "contrast",
}

// EpicIntent is the outcome of epic detection for a query.
type EpicIntent struct {
	// Epic is the target epic, or "" when the query is neutral or
	// cross-epic.
	Epic string

	// Hard means wrong-epic candidates should be dropped, not just
	// penalized. Requires a decisive cue margin or an explicit file
	// filter.
	Hard bool

	// CrossEpic means the query spans both epics; no bias applies.
	CrossEpic bool
}

// EpicBias scores candidates by whether their source document matches the
// epic the query is about.
type EpicBias struct {
	boost   float64
	penalty float64
	margin  int
	hard    bool
}

// NewEpicBias creates the bias stage. Non-positive arguments use defaults.
// hardFilter enables dropping wrong-epic candidates outright when the cue
// margin is decisive; off, a confident detection still only biases scores.
func NewEpicBias(boost, penalty float64, margin int, hardFilter bool) *EpicBias {
	if boost <= 0 {
		boost = DefaultEpicBoost
	}
	if penalty <= 0 {
		penalty = DefaultEpicPenalty
	}
	if margin <= 0 {
		margin = DefaultHardFilterMargin
	}
	return &EpicBias{boost: boost, penalty: penalty, margin: margin, hard: hardFilter}
}

// Detect infers the query's target epic. fileFilter is the explicit
// document filter, if the caller set one; it makes the intent hard.
func (e *EpicBias) Detect(query, fileFilter string) EpicIntent {
	normalized := normalizeQuery(query)
	words := strings.Fields(normalized)
	tokens := make(map[string]bool, len(words))
	for _, w := range words {
		tokens[strings.Trim(w, ",")] = true
	}

	ramHits := countCues(tokens, ramayanaCues)
	mbhHits := countCues(tokens, mahabharataCues)

	// Cross-epic questions get no bias at all.
	if isCrossEpic(tokens, ramHits, mbhHits) {
		return EpicIntent{CrossEpic: true}
	}

	if fileFilter != "" {
		if epic := InferDocEpic(fileFilter); epic != "" {
			return EpicIntent{Epic: epic, Hard: true}
		}
	}

	if ramHits == 0 && mbhHits == 0 {
		return EpicIntent{}
	}

	// Ties go to the Ramayana; it is the smaller corpus and more easily
	// drowned out.
	intent := EpicIntent{Epic: EpicRamayana}
	diff := ramHits - mbhHits
	if mbhHits > ramHits {
		intent.Epic = EpicMahabharata
		diff = mbhHits - ramHits
	}
	intent.Hard = e.hard && diff >= e.margin
	return intent
}

// Admit reports whether a chunk from fileName may enter fusion under the
// intent. Only a hard intent excludes anything; unattributed documents
// always pass.
func (e *EpicBias) Admit(fileName string, intent EpicIntent) bool {
	if !intent.Hard || intent.Epic == "" || intent.CrossEpic {
		return true
	}
	epic := InferDocEpic(fileName)
	return epic == "" || epic == intent.Epic
}

// Apply biases candidate scores toward the detected epic: a boost for
// matches, a penalty for mismatches, floored at zero. Hard exclusion is
// not done here; it happens before fusion via Admit, so a dropped chunk
// never influences the fused ranking.
func (e *EpicBias) Apply(candidates []*Candidate, intent EpicIntent) []*Candidate {
	if intent.CrossEpic || intent.Epic == "" {
		return candidates
	}

	for _, c := range candidates {
		if c.Epic == "" && c.Chunk != nil {
			c.Epic = InferDocEpic(c.Chunk.FileName)
		}

		switch {
		case c.Epic == intent.Epic:
			c.Score += e.boost
		case c.Epic == "":
			// Unattributed documents are left alone.
		default:
			c.Score -= e.penalty
			if c.Score < 0 {
				c.Score = 0
			}
		}
	}
	return candidates
}

// InferDocEpic guesses the source epic from a document file name.
func InferDocEpic(fileName string) string {
	lower := strings.ToLower(fileName)
	switch {
	case strings.Contains(lower, "ramayan"):
		return EpicRamayana
	case strings.Contains(lower, "mahabharat"):
		return EpicMahabharata
	default:
		return ""
	}
}

func countCues(tokens map[string]bool, cues []string) int {
	n := 0
	for _, cue := range cues {
		if tokens[cue] {
			n++
		}
	}
	return n
}

// isCrossEpic is true when the query names both epics' material or uses
// comparison vocabulary alongside any epic cue.
func isCrossEpic(tokens map[string]bool, ramHits, mbhHits int) bool {
	if ramHits > 0 && mbhHits > 0 {
		return true
	}
	for _, marker := range crossEpicMarkers {
		if tokens[marker] {
			return true
		}
	}
	return false
}
