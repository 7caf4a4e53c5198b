package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/index"
	"github.com/ayodhya-labs/itihasa/internal/output"
	"github.com/ayodhya-labs/itihasa/internal/preflight"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	force   bool
	offline bool
	docsDir string
	check   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the corpus indexes",
		Long: `Scan the documents directory, chunk each text into pages and
paragraphs, and build the chunk store, the lexical index, and the
vector index. Unchanged documents are skipped on subsequent runs.

Examples:
  itihasa index
  itihasa index --force
  itihasa index --docs /data/epics --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Reindex every document even if unchanged")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no Ollama)")
	cmd.Flags().StringVar(&opts.docsDir, "docs", "", "Documents directory (overrides config)")
	cmd.Flags().BoolVar(&opts.check, "check", false, "Verify index consistency after building")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	out := output.NewAuto(cmd.OutOrStdout())

	root, cfg, err := resolveProject(projectDir)
	if err != nil {
		return err
	}

	dataDir := resolvePath(root, cfg.Paths.DataDir)
	docsDir := resolvePath(root, cfg.Paths.DocsDir)
	if opts.docsDir != "" {
		docsDir = opts.docsDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// First index into a data directory checks the environment once.
	if preflight.NeedsCheck(dataDir) {
		results := preflight.New().LocalChecks(root)
		if preflight.HasCriticalFailures(results) {
			for _, r := range results {
				if r.IsCritical() {
					out.Errorf("%s: %s", r.Name, r.Message)
				}
			}
			return fmt.Errorf("environment checks failed; see 'itihasa doctor'")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			return err
		}
	}

	embedder, err := newEmbedder(ctx, cfg, opts.offline)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	snap, err := openSnapshot(dataDir, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer closeSnapshot(snap)

	// A model change invalidates the vector space; force rebuilds it.
	if !opts.force {
		if err := index.VerifyModelIdentity(ctx, snap.Chunks, embedder); err != nil {
			return err
		}
	}

	out.Statusf("📖", "Indexing %s with %s embeddings", docsDir, embedder.ModelName())

	coordinator, err := index.NewCoordinator(index.Config{
		Chunks:     snap.Chunks,
		Lexical:    snap.Lexical,
		Vectors:    snap.Vector,
		Embedder:   embedder,
		VectorPath: filepath.Join(dataDir, "vectors.hnsw"),
		Progress: func(fileName, stage string, done, total int) {
			out.Progress(done, total, fmt.Sprintf("%s %s", stage, fileName))
		},
	})
	if err != nil {
		return err
	}

	result, err := coordinator.IndexCorpus(ctx, docsDir, opts.force)
	if err != nil {
		return err
	}

	out.Successf("Indexed %d documents (%d unchanged, %d chunks) in %s",
		result.Documents, result.Skipped, result.Chunks, result.Took.Round(time.Millisecond))

	if opts.check {
		return runConsistencyCheck(ctx, out, snap)
	}
	return nil
}

func runConsistencyCheck(ctx context.Context, out *output.Writer, snap *store.Snapshot) error {
	check, err := index.NewConsistencyChecker(snap.Chunks, snap.Lexical, snap.Vector).Check(ctx)
	if err != nil {
		return err
	}

	if check.Consistent() {
		out.Successf("Indexes consistent: %d chunks, %d lexical docs, %d vectors",
			check.ChunkCount, check.LexicalCount, check.VectorCount)
		return nil
	}

	for _, issue := range check.Issues {
		out.Warning(issue)
	}
	return fmt.Errorf("index inconsistency detected; run 'itihasa index --force'")
}
