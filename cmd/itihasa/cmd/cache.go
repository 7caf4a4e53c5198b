package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/cache"
	"github.com/ayodhya-labs/itihasa/internal/output"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheCleanupCmd())
	return cmd
}

// openCache loads the persisted response cache from configuration.
func openCache() (*cache.ResponseCache, error) {
	root, cfg, err := resolveProject(projectDir)
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return nil, fmt.Errorf("response cache is disabled in configuration")
	}

	return cache.New(cfg.Cache.MaxSize,
		cache.WithTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour),
		cache.WithPersistence(resolvePath(root, cfg.Cache.FilePath)),
	)
}

func newCacheStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache size, hit rate, and frequent queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats := c.Stats()
			frequent := c.FrequentQueries(10)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Stats    cache.Stats           `json:"stats"`
					Frequent []cache.FrequentQuery `json:"frequent_queries"`
				}{stats, frequent})
			}

			out := output.NewAuto(cmd.OutOrStdout())
			out.Heading("Response cache")
			out.Statusf("", "Entries: %d / %d", stats.Size, stats.MaxSize)
			out.Statusf("", "Hits: %d  Misses: %d  Hit rate: %.1f%%", stats.Hits, stats.Misses, stats.HitRate*100)
			out.Statusf("", "Evictions: %d  Expirations: %d", stats.Evictions, stats.Expirations)

			if len(frequent) > 0 {
				out.Newline()
				out.Heading("Frequent queries")
				for _, fq := range frequent {
					out.Statusf("", "%3d  %s", fq.HitCount, fq.Query)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached answer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			removed := c.Invalidate(nil)

			output.NewAuto(cmd.OutOrStdout()).Successf("Removed %d cached answers", removed)
			return nil
		},
	}
}

func newCacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cached answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			removed := c.CleanupExpired()

			output.NewAuto(cmd.OutOrStdout()).Successf("Removed %d expired answers", removed)
			return nil
		},
	}
}
