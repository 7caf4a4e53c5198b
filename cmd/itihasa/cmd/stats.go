package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/output"
	"github.com/ayodhya-labs/itihasa/internal/store"
	"github.com/ayodhya-labs/itihasa/internal/telemetry"
)

// queryStats is the JSON output shape for the stats command.
type queryStats struct {
	Days                int                   `json:"days"`
	QueryTypeCounts     map[string]int64      `json:"query_type_counts"`
	RouteCounts         map[string]int64      `json:"route_counts"`
	TopTerms            []telemetry.TermCount `json:"top_terms"`
	ZeroResultQueries   []string              `json:"zero_result_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query pattern statistics",
		Long: `Display local query telemetry: query type and route distribution,
top query terms, recent zero-result queries, and the latency histogram.
Nothing leaves the machine.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool, days int) error {
	root, cfg, err := resolveProject(projectDir)
	if err != nil {
		return err
	}

	dataDir := resolvePath(root, cfg.Paths.DataDir)
	chunksPath := filepath.Join(dataDir, "chunks.db")
	if _, err := os.Stat(chunksPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found in %s. Run 'itihasa index' first", dataDir)
	}

	chunks, err := store.NewSQLiteChunkStore(chunksPath)
	if err != nil {
		return err
	}
	defer func() { _ = chunks.Close() }()

	metricsStore, err := telemetry.NewSQLiteMetricsStore(chunks.DB())
	if err != nil {
		return err
	}

	stats, err := collectStats(metricsStore, days)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStats(output.NewAuto(cmd.OutOrStdout()), stats)
	return nil
}

func collectStats(s *telemetry.SQLiteMetricsStore, days int) (*queryStats, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	to := now.Format("2006-01-02")

	types, err := s.GetQueryTypeCounts(from, to)
	if err != nil {
		return nil, err
	}
	routes, err := s.GetRouteCounts(from, to)
	if err != nil {
		return nil, err
	}
	terms, err := s.GetTopTerms(10)
	if err != nil {
		return nil, err
	}
	zeroes, err := s.GetZeroResultQueries(10)
	if err != nil {
		return nil, err
	}
	latencies, err := s.GetLatencyCounts(from, to)
	if err != nil {
		return nil, err
	}

	plainLatencies := make(map[string]int64, len(latencies))
	for bucket, count := range latencies {
		plainLatencies[string(bucket)] = count
	}

	return &queryStats{
		Days:                days,
		QueryTypeCounts:     types,
		RouteCounts:         routes,
		TopTerms:            terms,
		ZeroResultQueries:   zeroes,
		LatencyDistribution: plainLatencies,
	}, nil
}

func printStats(out *output.Writer, stats *queryStats) {
	var total int64
	for _, c := range stats.QueryTypeCounts {
		total += c
	}
	out.Statusf("📊", "Query statistics, last %d days (%d queries)", stats.Days, total)
	out.Newline()

	if total == 0 {
		out.Status("", "No queries recorded yet")
		return
	}

	out.Heading("By query type")
	for _, kv := range sortedCounts(stats.QueryTypeCounts) {
		out.Statusf("", "%6d  %s", kv.count, kv.key)
	}
	out.Newline()

	out.Heading("By route")
	for _, kv := range sortedCounts(stats.RouteCounts) {
		out.Statusf("", "%6d  %s", kv.count, kv.key)
	}
	out.Newline()

	if len(stats.TopTerms) > 0 {
		out.Heading("Top terms")
		for _, tc := range stats.TopTerms {
			out.Statusf("", "%6d  %s", tc.Count, tc.Term)
		}
		out.Newline()
	}

	if len(stats.ZeroResultQueries) > 0 {
		out.Heading("Recent zero-result queries")
		for _, q := range stats.ZeroResultQueries {
			out.Statusf("", "  %s", q)
		}
		out.Newline()
	}

	out.Heading("Latency")
	for _, bucket := range []telemetry.LatencyBucket{
		telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
		telemetry.BucketP500, telemetry.BucketP1000,
	} {
		if count, ok := stats.LatencyDistribution[string(bucket)]; ok {
			out.Statusf("", "%6d  %s", count, bucket)
		}
	}
}

type countEntry struct {
	key   string
	count int64
}

func sortedCounts(m map[string]int64) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	return entries
}
