package search

import (
	"sort"
	"strings"
	"unicode"
)

// Quality filter defaults. OCR-scanned public domain translations carry
// page furniture, hyphenation damage, and outright garbage chunks; the
// filter keeps them out of answers.
const (
	// DefaultMinChunkLength drops fragments too short to answer from.
	DefaultMinChunkLength = 50

	// DefaultMinPrintableRatio drops chunks of binary or mojibake.
	DefaultMinPrintableRatio = 0.8

	// DefaultMinAlphaRatio drops chunks that are mostly page numbers,
	// tables, or punctuation runs.
	DefaultMinAlphaRatio = 0.3

	// DefaultQualityPenaltyWeight scales how much low quality subtracts
	// from a candidate's score.
	DefaultQualityPenaltyWeight = 0.15
)

// corruptedMarkers are phrases from OCR and extraction artifacts that mark
// a chunk as unusable regardless of its ratios.
var corruptedMarkers = []string{
	"cannot be displayed",
	"missing page",
	"illegible",
	"[unreadable]",
	"scan error",
	"ocr error",
}

// QualityFilter validates chunk text and scores its cleanliness.
type QualityFilter struct {
	MinChunkLength    int
	MinPrintableRatio float64
	MinAlphaRatio     float64
	PenaltyWeight     float64

	// SourceWeights multiplies scores per source document, keyed by file
	// name. Unlisted documents weigh 1.0.
	SourceWeights map[string]float64
}

// NewQualityFilter creates a filter with defaults for zero fields.
func NewQualityFilter() *QualityFilter {
	return &QualityFilter{
		MinChunkLength:    DefaultMinChunkLength,
		MinPrintableRatio: DefaultMinPrintableRatio,
		MinAlphaRatio:     DefaultMinAlphaRatio,
		PenaltyWeight:     DefaultQualityPenaltyWeight,
	}
}

// Valid reports whether a chunk's text is usable as answer evidence.
// This is a hard gate: invalid chunks never reach ranking.
func (f *QualityFilter) Valid(text string) bool {
	if len(text) < f.MinChunkLength {
		return false
	}

	lower := strings.ToLower(text)
	for _, marker := range corruptedMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	var printable, alphaOrSpace, total int
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			alphaOrSpace++
		}
	}
	if total == 0 {
		return false
	}
	if float64(printable)/float64(total) < f.MinPrintableRatio {
		return false
	}
	if float64(alphaOrSpace)/float64(total) < f.MinAlphaRatio {
		return false
	}
	return true
}

// FilterValid removes candidates whose chunks fail validation.
func (f *QualityFilter) FilterValid(candidates []*Candidate) []*Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Chunk != nil && f.Valid(c.Chunk.Text) {
			out = append(out, c)
		}
	}
	return out
}

// Score rates text cleanliness in [0,1]. Three capped penalties: non-alpha
// density, repeated-token density, and short-token density.
func (f *QualityFilter) Score(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var nonAlpha, total int
	for _, r := range text {
		if r == ' ' {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			nonAlpha++
		}
	}

	nonAlphaRatio := 0.0
	if total > 0 {
		nonAlphaRatio = float64(nonAlpha) / float64(total)
	}

	// Only consecutive duplicates count as repetition. Prose naturally
	// reuses articles and names; stuttering tokens ("the the the") mark
	// OCR damage.
	short := 0
	repeats := 0
	prev := ""
	for i, w := range words {
		lw := strings.ToLower(w)
		if i > 0 && lw == prev {
			repeats++
		}
		prev = lw
		if len(lw) <= 2 {
			short++
		}
	}
	repetitionRatio := 0.0
	if len(words) > 1 {
		repetitionRatio = float64(repeats) / float64(len(words)-1)
	}
	shortRatio := float64(short) / float64(len(words))

	quality := 1.0
	quality -= capAt(nonAlphaRatio, 0.4)
	quality -= capAt(repetitionRatio, 0.3)
	quality -= capAt(shortRatio*0.5, 0.15)
	if quality < 0 {
		quality = 0
	}
	return quality
}

// Adjust applies source weighting and the quality penalty to each
// candidate's score, recording the quality score on the candidate.
func (f *QualityFilter) Adjust(candidates []*Candidate) {
	for _, c := range candidates {
		if c.Chunk == nil {
			continue
		}

		c.Quality = f.Score(c.Chunk.Text)

		c.Score = c.Score*f.sourceWeight(c.Chunk.FileName) - (1.0-c.Quality)*f.PenaltyWeight
		if c.Score < 0 {
			c.Score = 0
		}
	}
}

// sourceWeight resolves a document's weight: exact file name first, then
// the first configured key that is a case-insensitive substring of the
// name. Config keys like "ramayana" then cover "Ramayana_Griffith.txt"
// without listing every volume. Keys are tried in sorted order so the
// result is stable when several match.
func (f *QualityFilter) sourceWeight(fileName string) float64 {
	if len(f.SourceWeights) == 0 {
		return 1.0
	}
	if w, ok := f.SourceWeights[fileName]; ok && w > 0 {
		return w
	}

	lower := strings.ToLower(fileName)
	keys := make([]string, 0, len(f.SourceWeights))
	for k := range f.SourceWeights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if w := f.SourceWeights[k]; w > 0 && strings.Contains(lower, strings.ToLower(k)) {
			return w
		}
	}
	return 1.0
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
