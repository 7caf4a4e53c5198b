package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

const cleanPassage = "Rama bent the great bow of Shiva until it broke, and king Janaka " +
	"gave Sita to him in marriage before the assembled princes of the land."

func TestQualityFilter_Valid(t *testing.T) {
	f := NewQualityFilter()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"clean passage", cleanPassage, true},
		{"too short", "Rama bent the bow.", false},
		{"corruption marker", cleanPassage + " [unreadable]", false},
		{"scan error marker", "scan error on this page, " + cleanPassage, false},
		{"mostly punctuation", strings.Repeat("-=|.", 30), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Valid(tt.text))
		})
	}
}

func TestQualityFilter_FilterValid(t *testing.T) {
	f := NewQualityFilter()

	good := &Candidate{Chunk: &store.Chunk{ID: "g", Text: cleanPassage}}
	bad := &Candidate{Chunk: &store.Chunk{ID: "b", Text: "short"}}
	nilChunk := &Candidate{}

	out := f.FilterValid([]*Candidate{good, bad, nilChunk})

	require.Len(t, out, 1)
	assert.Equal(t, "g", out[0].Chunk.ID)
}

func TestQualityFilter_Score(t *testing.T) {
	f := NewQualityFilter()

	t.Run("clean prose scores high", func(t *testing.T) {
		assert.Greater(t, f.Score(cleanPassage), 0.7)
	})

	t.Run("stuttered tokens are penalized", func(t *testing.T) {
		stuttered := strings.Repeat("lanka ", 30)
		assert.Less(t, f.Score(stuttered), f.Score(cleanPassage))
	})

	t.Run("non-adjacent word reuse is not repetition", func(t *testing.T) {
		// Prose reuses articles constantly; only consecutive duplicates
		// count, over the number of adjacent pairs.
		text := "the king went to the forest and the queen went to the palace"
		// short tokens: "to" twice of 13 words; no other penalty applies
		assert.InDelta(t, 1.0-(2.0/13.0)*0.5, f.Score(text), 1e-9)
	})

	t.Run("consecutive duplicates count once per extra token", func(t *testing.T) {
		// "the the the king ..." has two stutters over eleven pairs.
		text := "the the the king of Ayodhya spoke gravely before his court"
		clean := "then the great king of Ayodhya spoke gravely before his court"
		assert.Less(t, f.Score(text), f.Score(clean))
	})

	t.Run("symbol noise is penalized", func(t *testing.T) {
		noisy := "R@ma w#nt t0 the f*rest ~~ <<|>> " + cleanPassage
		assert.Less(t, f.Score(noisy), f.Score(cleanPassage))
	})

	t.Run("empty text scores zero", func(t *testing.T) {
		assert.Zero(t, f.Score(""))
	})
}

func TestQualityFilter_Adjust(t *testing.T) {
	t.Run("quality penalty lowers the score", func(t *testing.T) {
		f := NewQualityFilter()
		clean := &Candidate{Chunk: &store.Chunk{ID: "c", Text: cleanPassage}, Score: 0.5}
		dirty := &Candidate{
			Chunk: &store.Chunk{ID: "d", Text: strings.Repeat("xx yy ", 20) + "|| @@ ##"},
			Score: 0.5,
		}

		f.Adjust([]*Candidate{clean, dirty})

		assert.Greater(t, clean.Score, dirty.Score)
		assert.Greater(t, clean.Quality, dirty.Quality)
	})

	t.Run("source weight multiplies before the penalty", func(t *testing.T) {
		f := NewQualityFilter()
		f.SourceWeights = map[string]float64{"preferred.txt": 1.5}

		weighted := &Candidate{
			Chunk: &store.Chunk{ID: "w", FileName: "preferred.txt", Text: cleanPassage},
			Score: 0.4,
		}
		plain := &Candidate{
			Chunk: &store.Chunk{ID: "p", FileName: "other.txt", Text: cleanPassage},
			Score: 0.4,
		}

		f.Adjust([]*Candidate{weighted, plain})

		assert.Greater(t, weighted.Score, plain.Score)
	})

	t.Run("weight key matches file name as substring", func(t *testing.T) {
		// Config names the work; files carry translator and volume
		// suffixes. Case-insensitive substring match bridges the two.
		f := NewQualityFilter()
		f.SourceWeights = map[string]float64{"ramayana": 0.5}

		downWeighted := &Candidate{
			Chunk: &store.Chunk{ID: "d", FileName: "Ramayana_Griffith_vol2.txt", Text: cleanPassage},
			Score: 0.4,
		}
		plain := &Candidate{
			Chunk: &store.Chunk{ID: "p", FileName: "mahabharata.txt", Text: cleanPassage},
			Score: 0.4,
		}

		f.Adjust([]*Candidate{downWeighted, plain})

		assert.Less(t, downWeighted.Score, plain.Score)
	})

	t.Run("exact weight key wins over substring keys", func(t *testing.T) {
		f := NewQualityFilter()
		f.SourceWeights = map[string]float64{
			"ramayana":     0.5,
			"ramayana.txt": 1.5,
		}

		c := &Candidate{
			Chunk: &store.Chunk{ID: "e", FileName: "ramayana.txt", Text: cleanPassage},
			Score: 0.4,
		}
		base := &Candidate{
			Chunk: &store.Chunk{ID: "b", FileName: "mahabharata.txt", Text: cleanPassage},
			Score: 0.4,
		}

		f.Adjust([]*Candidate{c, base})

		assert.Greater(t, c.Score, base.Score)
	})

	t.Run("score floors at zero", func(t *testing.T) {
		f := NewQualityFilter()
		c := &Candidate{
			Chunk: &store.Chunk{ID: "z", Text: "@@ ## || ~~ !!"},
			Score: 0.01,
		}

		f.Adjust([]*Candidate{c})

		assert.GreaterOrEqual(t, c.Score, 0.0)
	})
}
