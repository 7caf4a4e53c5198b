package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

func TestEpicBias_Detect(t *testing.T) {
	e := NewEpicBias(0, 0, 0, false)

	tests := []struct {
		name  string
		query string
		want  EpicIntent
	}{
		{
			"single cue is a soft intent",
			"Who is Sita?",
			EpicIntent{Epic: EpicRamayana},
		},
		{
			"decisive cue margin stays soft by default",
			"How did Rama rescue Sita from Lanka?",
			EpicIntent{Epic: EpicRamayana},
		},
		{
			"mahabharata cues",
			"Why did Krishna counsel Arjuna?",
			EpicIntent{Epic: EpicMahabharata},
		},
		{
			"no cues means no bias",
			"What is the nature of dharma?",
			EpicIntent{},
		},
		{
			"cues from both epics exempt the query",
			"Did Rama and Krishna both bear divine weapons?",
			EpicIntent{CrossEpic: true},
		},
		{
			"comparison vocabulary exempts the query",
			"Compare the two great wars",
			EpicIntent{CrossEpic: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Detect(tt.query, ""))
		})
	}
}

func TestEpicBias_DetectHardFilterEnabled(t *testing.T) {
	e := NewEpicBias(0, 0, 0, true)

	t.Run("decisive margin hardens the intent", func(t *testing.T) {
		intent := e.Detect("How did Rama rescue Sita from Lanka?", "")

		assert.Equal(t, EpicIntent{Epic: EpicRamayana, Hard: true}, intent)
	})

	t.Run("a single cue stays soft", func(t *testing.T) {
		intent := e.Detect("Who is Sita?", "")

		assert.Equal(t, EpicIntent{Epic: EpicRamayana}, intent)
	})
}

func TestEpicBias_DetectFileFilterIsHard(t *testing.T) {
	e := NewEpicBias(0, 0, 0, false)

	intent := e.Detect("Who was the eldest brother?", "mahabharata_vol2.txt")

	assert.Equal(t, EpicIntent{Epic: EpicMahabharata, Hard: true}, intent)
}

func epicCandidate(id, fileName string) *Candidate {
	return &Candidate{Chunk: &store.Chunk{ID: id, FileName: fileName}, Score: 0.5}
}

func TestEpicBias_ApplySoft(t *testing.T) {
	e := NewEpicBias(0, 0, 0, false)

	// Given: candidates from the right epic, the wrong epic, and an
	// unattributed document
	right := epicCandidate("r", "ramayana_griffith.txt")
	wrong := epicCandidate("w", "mahabharata_ganguli.txt")
	neutral := epicCandidate("n", "notes.txt")

	// When
	out := e.Apply([]*Candidate{right, wrong, neutral}, EpicIntent{Epic: EpicRamayana})

	// Then: boost, penalty, and no change respectively
	require.Len(t, out, 3)
	assert.InDelta(t, 0.5+DefaultEpicBoost, right.Score, 1e-9)
	assert.InDelta(t, 0.5-DefaultEpicPenalty, wrong.Score, 1e-9)
	assert.InDelta(t, 0.5, neutral.Score, 1e-9)
}

func TestEpicBias_Admit(t *testing.T) {
	e := NewEpicBias(0, 0, 0, true)

	t.Run("hard intent excludes the wrong epic", func(t *testing.T) {
		intent := EpicIntent{Epic: EpicRamayana, Hard: true}

		assert.True(t, e.Admit("ramayana_griffith.txt", intent))
		assert.True(t, e.Admit("notes.txt", intent))
		assert.False(t, e.Admit("mahabharata_ganguli.txt", intent))
	})

	t.Run("soft intent admits everything", func(t *testing.T) {
		intent := EpicIntent{Epic: EpicRamayana}

		assert.True(t, e.Admit("mahabharata_ganguli.txt", intent))
	})

	t.Run("cross-epic admits everything", func(t *testing.T) {
		assert.True(t, e.Admit("mahabharata_ganguli.txt", EpicIntent{CrossEpic: true}))
	})
}

func TestEpicBias_ApplyPenaltyFloorsAtZero(t *testing.T) {
	e := NewEpicBias(0, 0, 0, false)

	wrong := epicCandidate("w", "mahabharata_ganguli.txt")
	wrong.Score = 0.05

	out := e.Apply([]*Candidate{wrong}, EpicIntent{Epic: EpicRamayana})

	require.Len(t, out, 1)
	assert.Zero(t, out[0].Score)
}

func TestEpicBias_ApplyCrossEpicIsUntouched(t *testing.T) {
	e := NewEpicBias(0, 0, 0, false)

	c := epicCandidate("r", "ramayana_griffith.txt")

	out := e.Apply([]*Candidate{c}, EpicIntent{CrossEpic: true})

	require.Len(t, out, 1)
	assert.InDelta(t, 0.5, c.Score, 1e-9)
}

func TestInferDocEpic(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"ramayana_vol1.txt", EpicRamayana},
		{"The_Ramayan_of_Valmiki.pdf", EpicRamayana},
		{"mahabharata_ganguli.txt", EpicMahabharata},
		{"Mahabharat_Stories.txt", EpicMahabharata},
		{"upanishads.txt", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InferDocEpic(tt.fileName), tt.fileName)
	}
}
