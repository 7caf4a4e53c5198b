package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Decomposition constants.
const (
	// DefaultMaxSubQueries bounds rule-based decomposition output.
	DefaultMaxSubQueries = 3

	// DeepMaxSubQueries bounds decomposition in deep search mode.
	DeepMaxSubQueries = 5

	// MinSubQueryLength drops fragments too short to retrieve on.
	MinSubQueryLength = 10
)

// SubQueryGenerator optionally refines rule-based decomposition with an
// LLM. Implemented by llm.Generator.
type SubQueryGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Decomposer splits compound questions into independently retrievable
// sub-questions. Rules run in priority order; the first that matches wins.
// An optional generator pass can rewrite harder queries.
type Decomposer struct {
	maxSubQueries int
	generator     SubQueryGenerator // nil disables the LLM pass
}

// NewDecomposer creates a rule-based decomposer.
func NewDecomposer(maxSubQueries int) *Decomposer {
	if maxSubQueries <= 0 {
		maxSubQueries = DefaultMaxSubQueries
	}
	return &Decomposer{maxSubQueries: maxSubQueries}
}

// WithGenerator enables the LLM refinement pass.
func (d *Decomposer) WithGenerator(g SubQueryGenerator) *Decomposer {
	d.generator = g
	return d
}

var (
	compareRe    = regexp.MustCompile(`(?i)\bcompare\s+(.+?)\s+(?:and|with|to)\s+(.+?)[?.!]*$`)
	differenceRe = regexp.MustCompile(`(?i)\bdifference(?:s)?\s+between\s+(.+?)\s+and\s+(.+?)[?.!]*$`)
	causalRe     = regexp.MustCompile(`(?i)\b(?:what\s+)?(?:did|caused|resulted\s+in|led\s+to)\b`)
)

// Decompose returns the sub-questions for a query, or just the query itself
// when no rule applies.
func (d *Decomposer) Decompose(ctx context.Context, query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	subs := d.applyRules(trimmed)

	if d.generator != nil && len(subs) <= 1 {
		if refined := d.generatorPass(ctx, trimmed); len(refined) > 1 {
			subs = refined
		}
	}

	subs = d.sanitize(subs)
	if len(subs) == 0 {
		return []string{trimmed}
	}
	return subs
}

// applyRules runs the ordered pattern rules.
func (d *Decomposer) applyRules(query string) []string {
	// Rule 1: "compare X and Y" asks for each side independently.
	if m := compareRe.FindStringSubmatch(query); m != nil {
		return []string{
			fmt.Sprintf("What is %s?", strings.TrimSpace(m[1])),
			fmt.Sprintf("What is %s?", strings.TrimSpace(m[2])),
		}
	}

	// Rule 2: "difference between X and Y" wants descriptions to contrast.
	if m := differenceRe.FindStringSubmatch(query); m != nil {
		return []string{
			fmt.Sprintf("Describe %s", strings.TrimSpace(m[1])),
			fmt.Sprintf("Describe %s", strings.TrimSpace(m[2])),
		}
	}

	// Rule 3: causal questions need the event, its cause, and its outcome.
	if causalRe.MatchString(query) && strings.Count(query, " ") >= 4 {
		topic := strings.TrimRight(query, "?.! ")
		return []string{
			query,
			fmt.Sprintf("What events led to this: %s?", topic),
			fmt.Sprintf("What happened as a result of this: %s?", topic),
		}
	}

	// Rule 4: conjunction of questions splits on " and ".
	if strings.Contains(query, " and ") && strings.Contains(query, "?") {
		parts := strings.Split(query, " and ")
		if len(parts) > 1 {
			return parts
		}
	}

	// Rule 5: heavily punctuated queries split on question marks.
	if strings.Count(query, ",") >= 2 || strings.Count(query, "?") >= 2 {
		parts := strings.Split(query, "?")
		if len(parts) > 1 {
			return parts
		}
	}

	return []string{query}
}

// generatorPass asks the LLM to break the question apart. Output lines are
// cleaned and numbered/bulleted prefixes stripped; failures fall back to
// the rule result silently.
func (d *Decomposer) generatorPass(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(
		"Break this question about the Ramayana and Mahabharata into at most %d simpler sub-questions, one per line, no numbering:\n\n%s",
		d.maxSubQueries, query)

	raw, err := d.generator.Generate(ctx, prompt)
	if err != nil {
		slog.Debug("decompose_llm_failed", slog.String("error", err.Error()))
		return nil
	}

	var subs []string
	for _, line := range strings.Split(raw, "\n") {
		line = cleanSubQueryLine(line)
		if line != "" {
			subs = append(subs, line)
		}
	}
	return subs
}

var listPrefixRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// cleanSubQueryLine strips list markers and guarantees a question mark.
func cleanSubQueryLine(line string) string {
	line = listPrefixRe.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	if len(line) < MinSubQueryLength {
		return ""
	}
	if !strings.HasSuffix(line, "?") {
		line += "?"
	}
	return line
}

// sanitize trims fragments, drops short ones, dedupes, and caps the count.
func (d *Decomposer) sanitize(subs []string) []string {
	seen := make(map[string]bool, len(subs))
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		s = strings.TrimSpace(s)
		if len(s) < MinSubQueryLength {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) >= d.maxSubQueries {
			break
		}
	}
	return out
}
