package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecomposer_CompareRule(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(), "Compare Rama and Krishna")

	require.Len(t, subs, 2)
	assert.Equal(t, "What is Rama?", subs[0])
	assert.Equal(t, "What is Krishna?", subs[1])
}

func TestDecomposer_CompareWithRule(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(), "Compare the Pandavas with the Kauravas?")

	require.Len(t, subs, 2)
	assert.Equal(t, "What is the Pandavas?", subs[0])
	assert.Equal(t, "What is the Kauravas?", subs[1])
}

func TestDecomposer_DifferenceRule(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(), "What is the difference between Bhima and Duryodhana?")

	require.Len(t, subs, 2)
	assert.Equal(t, "Describe Bhima", subs[0])
	assert.Equal(t, "Describe Duryodhana", subs[1])
}

func TestDecomposer_CausalRule(t *testing.T) {
	d := NewDecomposer(0)

	// Given: a causal question long enough to decompose
	subs := d.Decompose(context.Background(), "What caused the Kurukshetra war to begin?")

	// Then: the original plus cause and consequence sub-questions
	require.Len(t, subs, 3)
	assert.Equal(t, "What caused the Kurukshetra war to begin?", subs[0])
	assert.Contains(t, subs[1], "What events led to this")
	assert.Contains(t, subs[2], "What happened as a result of this")
}

func TestDecomposer_ConjunctionRule(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(), "Who is Hanuman and who is Sugriva?")

	require.Len(t, subs, 2)
	assert.Equal(t, "Who is Hanuman", subs[0])
	assert.Equal(t, "who is Sugriva?", subs[1])
}

func TestDecomposer_QuestionMarkSplitIsCapped(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(),
		"Who is Hanuman? Who is Sugriva? Who is Jambavan? Who is Angada?")

	// Four questions, but output is capped at the sub-query limit.
	assert.Len(t, subs, DefaultMaxSubQueries)
}

func TestDecomposer_NoRuleReturnsQuery(t *testing.T) {
	d := NewDecomposer(0)

	subs := d.Decompose(context.Background(), "Who is Hanuman?")

	require.Len(t, subs, 1)
	assert.Equal(t, "Who is Hanuman?", subs[0])
}

func TestDecomposer_EmptyQuery(t *testing.T) {
	d := NewDecomposer(0)

	assert.Nil(t, d.Decompose(context.Background(), "   "))
}

func TestDecomposer_DeduplicatesSubQueries(t *testing.T) {
	d := NewDecomposer(0)

	// Both halves normalize to the same sub-question.
	subs := d.Decompose(context.Background(), "Compare Arjuna and Arjuna")

	assert.Len(t, subs, 1)
}

// scriptedGenerator returns fixed output for the refinement pass.
type scriptedGenerator struct {
	output string
	err    error
	calls  int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.output, g.err
}

func TestDecomposer_GeneratorRefinement(t *testing.T) {
	// Given: a query no rule can split and a generator that can
	gen := &scriptedGenerator{
		output: "1. What is dharma in the Gita?\n- Why does Arjuna hesitate before battle\nshort",
	}
	d := NewDecomposer(0).WithGenerator(gen)

	// When
	subs := d.Decompose(context.Background(), "Explain the role of dharma in Arjuna's dilemma")

	// Then: list prefixes stripped, short lines dropped, question marks added
	require.Len(t, subs, 2)
	assert.Equal(t, "What is dharma in the Gita?", subs[0])
	assert.Equal(t, "Why does Arjuna hesitate before battle?", subs[1])
	assert.Equal(t, 1, gen.calls)
}

func TestDecomposer_GeneratorSkippedWhenRulesSplit(t *testing.T) {
	gen := &scriptedGenerator{output: "ignored"}
	d := NewDecomposer(0).WithGenerator(gen)

	subs := d.Decompose(context.Background(), "Compare Rama and Krishna")

	require.Len(t, subs, 2)
	assert.Zero(t, gen.calls)
}

func TestDecomposer_GeneratorFailureFallsBack(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model unavailable")}
	d := NewDecomposer(0).WithGenerator(gen)

	subs := d.Decompose(context.Background(), "Explain the role of dharma in Arjuna's dilemma")

	// The original query survives generator failure.
	require.Len(t, subs, 1)
	assert.Equal(t, "Explain the role of dharma in Arjuna's dilemma", subs[0])
}

func TestDecomposer_CustomCap(t *testing.T) {
	d := NewDecomposer(2)

	subs := d.Decompose(context.Background(), "What caused the Kurukshetra war to begin?")

	assert.Len(t, subs, 2)
}
