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

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	file       string
	deep       bool
	offline    bool
	jsonOutput bool
	explain    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve passages without generating an answer",
		Long: `Run the retrieval pipeline and print the ranked passages.

Useful for inspecting what the engine would feed the generator, and as
a plain full-text search over the corpus.

Examples:
  itihasa search "game of dice"
  itihasa search "Kurukshetra" --limit 5 --file mahabharata.txt
  itihasa search "exile of Rama" --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of passages (0 = strategy default)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Restrict retrieval to one source document")
	cmd.Flags().BoolVar(&opts.deep, "deep", false, "Deep mode: wider decomposition and fan-out")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no Ollama)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show classification, route, and sub-queries")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.NewAuto(cmd.OutOrStdout())

	a, err := openApp(ctx, opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics, err := newMetrics(a)
	if err != nil {
		return err
	}
	defer func() { _ = metrics.Close() }()

	resp, err := a.engine.Query(ctx, query, search.Options{
		TopK:       opts.limit,
		FileFilter: opts.file,
		Deep:       opts.deep,
	})
	if err != nil {
		return err
	}

	metrics.Record(telemetry.QueryEvent{
		Query:         query,
		QueryType:     string(resp.Classification.Type),
		Route:         resp.Strategy.Route,
		ResultCount:   len(resp.Results),
		Degraded:      resp.Degraded,
		DiversityGain: resp.DiversityGain,
		Latency:       resp.Took,
		Timestamp:     time.Now(),
	})
	slog.Info("search_complete",
		slog.String("request_id", resp.RequestID),
		slog.String("route", resp.Strategy.Route),
		slog.Int("results", len(resp.Results)))

	if opts.jsonOutput {
		return printResultsJSON(cmd, resp)
	}
	return printResults(out, resp, opts.explain)
}

func printResults(out *output.Writer, resp *search.Response, explain bool) error {
	if explain {
		out.Statusf("", "Type: %s (confidence %.2f, %s)",
			resp.Classification.Type, resp.Classification.Confidence, resp.Classification.Complexity)
		out.Statusf("", "Route: %s", resp.Strategy.Route)
		for _, sq := range resp.SubQueries {
			out.Statusf("", "  sub-query: %q", sq)
		}
		out.Newline()
	}

	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No passages found for %q", resp.Query))
		return nil
	}

	if resp.Degraded {
		out.Warning("One retrieval leg was unavailable; results may be partial")
	}
	out.Statusf("🔍", "Found %d passages for %q:", len(resp.Results), resp.Query)
	out.Newline()

	for i, r := range resp.Results {
		out.Passage(i+1, r.Chunk.FileName, r.Chunk.PageNumber, r.Score, r.Chunk.Text)
	}
	return nil
}

func printResultsJSON(cmd *cobra.Command, resp *search.Response) error {
	type jsonResult struct {
		FileName   string  `json:"file_name"`
		PageNumber int     `json:"page_number"`
		ChunkIndex int     `json:"chunk_index"`
		Score      float64 `json:"score"`
		Text       string  `json:"text"`
	}

	var results []jsonResult
	for _, r := range resp.Results {
		results = append(results, jsonResult{
			FileName:   r.Chunk.FileName,
			PageNumber: r.Chunk.PageNumber,
			ChunkIndex: r.Chunk.ChunkIndex,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
