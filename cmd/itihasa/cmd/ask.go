package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/output"
	"github.com/ayodhya-labs/itihasa/internal/search"
	"github.com/ayodhya-labs/itihasa/internal/telemetry"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	topK        int
	file        string
	deep        bool
	noCache     bool
	offline     bool
	jsonOutput  bool
	showSources bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and get a cited answer",
		Long: `Ask a natural-language question about the indexed epics.

The engine classifies the question, retrieves supporting passages with
hybrid lexical+semantic search, and generates an answer citing its
sources. When the generation model is unavailable the retrieved
passages are returned on their own.

Examples:
  itihasa ask "Who killed Ravana?"
  itihasa ask "Why did the Pandavas go into exile?" --sources
  itihasa ask "Compare Rama and Krishna as leaders" --deep
  itihasa ask "Who is Sita?" --file ramayana.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Number of passages to retrieve (0 = strategy default)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Restrict retrieval to one source document")
	cmd.Flags().BoolVar(&opts.deep, "deep", false, "Deep mode: wider decomposition and fan-out")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the response cache")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no Ollama)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the answer as JSON")
	cmd.Flags().BoolVar(&opts.showSources, "sources", false, "Print the supporting passages")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	out := output.NewAuto(cmd.OutOrStdout())

	a, err := openApp(ctx, opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	responseCache, err := newResponseCache(a)
	if err != nil {
		return err
	}
	if responseCache != nil {
		defer func() { _ = responseCache.Close() }()
	}

	generator := newGenerator(a.cfg)
	defer func() { _ = generator.Close() }()

	if a.cfg.Search.DecomposeWithLLM {
		a.engine.SetDecomposerGenerator(generator)
	}

	metrics, err := newMetrics(a)
	if err != nil {
		return err
	}
	defer func() { _ = metrics.Close() }()

	answerer := search.NewAnswerer(a.engine, generator, responseCache)
	answer, err := answerer.Ask(ctx, question, search.AskOptions{
		TopK:       opts.topK,
		FileFilter: opts.file,
		Deep:       opts.deep,
		NoCache:    opts.noCache,
	})
	if err != nil {
		return err
	}

	metrics.Record(telemetry.QueryEvent{
		Query:       question,
		QueryType:   string(answer.QueryType),
		Route:       answer.Route,
		ResultCount: len(answer.Sources),
		Degraded:    answer.Degraded,
		FromCache:   answer.FromCache,
		Latency:     answer.Took,
		Timestamp:   time.Now(),
	})
	slog.Info("ask_complete",
		slog.String("request_id", answer.RequestID),
		slog.String("route", answer.Route),
		slog.Bool("cached", answer.FromCache),
		slog.Duration("took", answer.Took))

	if opts.jsonOutput {
		return printAnswerJSON(cmd, answer)
	}
	return printAnswer(out, answer, opts.showSources)
}

func printAnswer(out *output.Writer, answer *search.Answer, showSources bool) error {
	if len(answer.Sources) == 0 {
		out.Status("", fmt.Sprintf("Nothing in the corpus matches %q", answer.Query))
		return nil
	}

	if !answer.Generated {
		out.Warning("Generation model unavailable; showing retrieved passages only")
	}
	if answer.Degraded {
		out.Warning("One retrieval leg was unavailable; results may be partial")
	}

	if answer.Text != "" {
		out.Answer(answer.Text)
	}

	if showSources || !answer.Generated {
		out.Heading("Sources")
		for i, r := range answer.Sources {
			out.Passage(i+1, r.Chunk.FileName, r.Chunk.PageNumber, r.Score, r.Chunk.Text)
		}
	} else {
		for i, r := range answer.Sources {
			out.Status("", fmt.Sprintf("[%d] %s, page %d", i+1, r.Chunk.FileName, r.Chunk.PageNumber))
		}
	}

	if answer.FromCache {
		out.Status("", "(cached)")
	}
	return nil
}

func printAnswerJSON(cmd *cobra.Command, answer *search.Answer) error {
	type jsonSource struct {
		FileName   string  `json:"file_name"`
		PageNumber int     `json:"page_number"`
		Score      float64 `json:"score"`
		Text       string  `json:"text"`
	}
	type jsonAnswer struct {
		Query     string       `json:"query"`
		Answer    string       `json:"answer"`
		QueryType string       `json:"query_type"`
		Route     string       `json:"route"`
		Generated bool         `json:"generated"`
		Degraded  bool         `json:"degraded"`
		FromCache bool         `json:"from_cache"`
		TookMs    int64        `json:"took_ms"`
		Sources   []jsonSource `json:"sources"`
	}

	payload := jsonAnswer{
		Query:     answer.Query,
		Answer:    answer.Text,
		QueryType: string(answer.QueryType),
		Route:     answer.Route,
		Generated: answer.Generated,
		Degraded:  answer.Degraded,
		FromCache: answer.FromCache,
		TookMs:    answer.Took.Milliseconds(),
	}
	for _, r := range answer.Sources {
		payload.Sources = append(payload.Sources, jsonSource{
			FileName:   r.Chunk.FileName,
			PageNumber: r.Chunk.PageNumber,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
