package search

import (
	"strings"
)

// DefaultEntityBoost is added to a candidate's score per distinct query
// entity found in its text. Boosts stack: a chunk mentioning both Rama and
// Sita for a query naming both gets twice the boost.
const DefaultEntityBoost = 0.15

// entitySynonyms maps canonical character and place names to the variant
// spellings and epithets that appear across public-domain translations.
// All entries are lowercase.
var entitySynonyms = map[string][]string{
	"rama":         {"ram", "raghava", "ramachandra", "raghunatha", "dasharathi"},
	"sita":         {"seeta", "janaki", "vaidehi", "maithili"},
	"ravana":       {"ravan", "dashanana", "lankesha"},
	"hanuman":      {"maruti", "anjaneya", "pavanputra", "bajrangbali"},
	"lakshmana":    {"lakshman", "saumitri"},
	"bharata":      {"bharat"},
	"dasharatha":   {"dasaratha"},
	"krishna":      {"vasudeva", "govinda", "madhava", "keshava", "hari"},
	"arjuna":       {"arjun", "partha", "dhananjaya", "savyasachi"},
	"bhima":        {"bhimasena", "vrikodara"},
	"yudhishthira": {"yudhisthira", "dharmaraja", "ajatashatru"},
	"draupadi":     {"panchali", "krishnaa", "yajnaseni"},
	"duryodhana":   {"suyodhana"},
	"karna":        {"radheya", "vasusena", "suryaputra"},
	"bhishma":      {"devavrata", "gangaputra"},
	"drona":        {"dronacharya"},
	"kauravas":     {"kaurava"},
	"pandavas":     {"pandava"},
	"ayodhya":      {"avadh"},
	"lanka":        {"lankapuri"},
	"hastinapura":  {"hastinapur"},
	"kurukshetra":  {"kurukshetr"},
}

// variantToCanonical is the reverse index, built once at init.
var variantToCanonical = func() map[string]string {
	m := make(map[string]string, len(entitySynonyms)*4)
	for canonical, variants := range entitySynonyms {
		m[canonical] = canonical
		for _, v := range variants {
			m[v] = canonical
		}
	}
	return m
}()

// ExtractEntities returns the canonical entities named in a query, in
// first-mention order without duplicates.
func ExtractEntities(query string) []string {
	seen := make(map[string]bool)
	var entities []string
	for _, word := range strings.Fields(normalizeQuery(query)) {
		word = strings.Trim(word, ",")
		if canonical, ok := variantToCanonical[word]; ok && !seen[canonical] {
			seen[canonical] = true
			entities = append(entities, canonical)
		}
	}
	return entities
}

// ExpandQuery appends synonym variants for each recognized entity so the
// lexical leg matches translations that prefer epithets. The original
// query text always comes first.
func ExpandQuery(query string) string {
	entities := ExtractEntities(query)
	if len(entities) == 0 {
		return query
	}

	var extra []string
	for _, e := range entities {
		extra = append(extra, entitySynonyms[e]...)
	}
	return query + " " + strings.Join(extra, " ")
}

// EntityBooster raises candidates whose text mentions query entities under
// any known variant.
type EntityBooster struct {
	boost float64
}

// NewEntityBooster creates a booster. boost <= 0 uses the default.
func NewEntityBooster(boost float64) *EntityBooster {
	if boost <= 0 {
		boost = DefaultEntityBoost
	}
	return &EntityBooster{boost: boost}
}

// Apply adds the boost once per distinct query entity present in each
// candidate's text. Candidates are modified in place.
func (b *EntityBooster) Apply(candidates []*Candidate, query string) {
	entities := ExtractEntities(query)
	if len(entities) == 0 {
		return
	}

	for _, c := range candidates {
		if c.Chunk == nil || c.Chunk.Text == "" {
			continue
		}
		text := strings.ToLower(c.Chunk.Text)
		for _, entity := range entities {
			if mentionsEntity(text, entity) {
				c.Score += b.boost
			}
		}
	}
}

// mentionsEntity checks the canonical name and every variant.
func mentionsEntity(lowerText, canonical string) bool {
	if containsWord(lowerText, canonical) {
		return true
	}
	for _, v := range entitySynonyms[canonical] {
		if containsWord(lowerText, v) {
			return true
		}
	}
	return false
}

// containsWord is a cheap word-boundary check: the match must not be
// flanked by letters, so "ram" does not match inside "pilgrims".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)

		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end == len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
