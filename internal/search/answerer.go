package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ayodhya-labs/itihasa/internal/cache"
)

// AnswerGenerator produces answer text from an assembled prompt.
// Implemented by llm.OllamaGenerator.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Available(ctx context.Context) bool
}

// Answer is a generated answer with its supporting evidence.
type Answer struct {
	Query     string
	Text      string
	Sources   []*Result
	QueryType QueryType
	Route     string
	Generated bool // false when the generator was unavailable
	Degraded  bool
	FromCache bool
	Took      time.Duration
	RequestID string
}

// AskOptions adjusts a single answer request.
type AskOptions struct {
	TopK       int
	FileFilter string
	Deep       bool
	NoCache    bool

	// History holds the conversation's previous queries, oldest first,
	// so short follow-ups classify as conversational.
	History []string
}

// Answerer turns questions into cited answers: cache lookup, retrieval
// through the engine, prompt assembly, generation, cache write.
type Answerer struct {
	engine    *Engine
	generator AnswerGenerator
	cache     *cache.ResponseCache // nil disables caching
}

// NewAnswerer wires the answer pipeline. generator and responseCache may be
// nil; both degrade gracefully.
func NewAnswerer(engine *Engine, generator AnswerGenerator, responseCache *cache.ResponseCache) *Answerer {
	return &Answerer{engine: engine, generator: generator, cache: responseCache}
}

// Ask answers a question from the corpus. When the generator is down the
// answer text is empty, Generated is false, and the retrieved passages are
// still returned so the caller can show evidence instead of nothing.
func (a *Answerer) Ask(ctx context.Context, query string, opts AskOptions) (*Answer, error) {
	start := time.Now()

	// Follow-ups depend on conversation state; the cache is keyed by
	// query text alone, so they bypass it in both directions.
	cacheable := a.cache != nil && !opts.NoCache && len(opts.History) == 0

	if cacheable {
		if entry, ok := a.cache.Get(query, opts.FileFilter); ok {
			ans := &Answer{
				Query:     query,
				Text:      entry.Answer,
				Sources:   a.hydrateSources(ctx, entry.SourceIDs),
				QueryType: QueryType(entry.QueryType),
				Generated: true,
				FromCache: true,
				Took:      time.Since(start),
			}
			slog.Info("answer_from_cache", slog.String("query", query))
			return ans, nil
		}
	}

	resp, err := a.engine.Query(ctx, query, Options{
		TopK:       opts.TopK,
		FileFilter: opts.FileFilter,
		Deep:       opts.Deep,
		History:    opts.History,
	})
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Query:     query,
		Sources:   resp.Results,
		QueryType: resp.Classification.Type,
		Route:     resp.Strategy.Route,
		Degraded:  resp.Degraded,
		RequestID: resp.RequestID,
	}

	if a.generator == nil || !a.generator.Available(ctx) {
		ans.Took = time.Since(start)
		slog.Warn("generator_unavailable_retrieval_only",
			slog.String("request_id", resp.RequestID))
		return ans, nil
	}

	prompt := buildPrompt(query, resp)
	text, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		// Generation failure still leaves usable evidence.
		ans.Took = time.Since(start)
		slog.Warn("generation_failed",
			slog.String("request_id", resp.RequestID),
			slog.String("error", err.Error()))
		return ans, nil
	}

	ans.Text = strings.TrimSpace(text)
	ans.Generated = true
	ans.Took = time.Since(start)

	if cacheable && ans.Text != "" {
		ids := make([]string, 0, len(resp.Results))
		for _, r := range resp.Results {
			ids = append(ids, r.Chunk.ID)
		}
		a.cache.Set(query, opts.FileFilter, &cache.Entry{
			Query:      query,
			Answer:     ans.Text,
			SourceIDs:  ids,
			QueryType:  string(resp.Classification.Type),
			FileFilter: opts.FileFilter,
		})
	}

	return ans, nil
}

// buildPrompt assembles the grounded generation prompt: mode instruction,
// numbered passages with provenance, then the question.
func buildPrompt(query string, resp *Response) string {
	var b strings.Builder

	b.WriteString("You are answering questions about the Ramayana and the Mahabharata using only the passages below.\n")
	b.WriteString(ResponseInstruction(resp.Strategy.ResponseMode))
	b.WriteString(" If the passages do not contain the answer, say so.\n\nPassages:\n")

	for i, r := range resp.Results {
		fmt.Fprintf(&b, "[%d] (%s, page %d) %s\n\n",
			i+1, r.Chunk.FileName, r.Chunk.PageNumber, strings.TrimSpace(r.Chunk.Text))
	}

	fmt.Fprintf(&b, "Question: %s\nAnswer:", query)
	return b.String()
}

// hydrateSources rebuilds result rows for a cached answer's source IDs.
// Chunks that no longer exist (reindexed corpus) are silently dropped.
func (a *Answerer) hydrateSources(ctx context.Context, ids []string) []*Result {
	if len(ids) == 0 {
		return nil
	}
	snap := a.engine.snapshot()
	if snap == nil {
		return nil
	}

	chunks, err := snap.Chunks.GetChunks(ctx, ids)
	if err != nil {
		slog.Warn("cached_source_hydration_failed", slog.String("error", err.Error()))
		return nil
	}

	results := make([]*Result, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, &Result{Chunk: ch})
	}
	return results
}
