package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayodhya-labs/itihasa/internal/cache"
	"github.com/ayodhya-labs/itihasa/internal/config"
	"github.com/ayodhya-labs/itihasa/internal/embed"
	"github.com/ayodhya-labs/itihasa/internal/index"
	"github.com/ayodhya-labs/itihasa/internal/llm"
	"github.com/ayodhya-labs/itihasa/internal/search"
	"github.com/ayodhya-labs/itihasa/internal/store"
	"github.com/ayodhya-labs/itihasa/internal/telemetry"
)

// app bundles the long-lived handles a query command needs: configuration,
// the embedder, and an engine reading live index snapshots.
type app struct {
	root     string
	cfg      *config.Config
	dataDir  string
	docsDir  string
	embedder embed.Embedder
	reloader *store.Reloader
	engine   *search.Engine
}

// resolveProject locates the project root from the --dir flag and loads
// layered configuration.
func resolveProject(dir string) (string, *config.Config, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return "", nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// resolvePath anchors a relative config path at the project root.
func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// newEmbedder builds the configured embedding provider. offline forces the
// static provider regardless of configuration.
func newEmbedder(ctx context.Context, cfg *config.Config, offline bool) (embed.Embedder, error) {
	provider := embed.ParseProvider(cfg.Embedder.Provider)
	if offline {
		provider = embed.ProviderStatic
	}

	return embed.NewEmbedder(ctx, embed.Options{
		Provider:  provider,
		Model:     cfg.Embedder.Model,
		Host:      cfg.Embedder.OllamaHost,
		BatchSize: cfg.Embedder.BatchSize,
		CacheSize: cfg.Embedder.CacheSize,
	})
}

// openSnapshot opens the three index handles from dataDir.
func openSnapshot(dataDir string, dimensions int) (*store.Snapshot, error) {
	chunks, err := store.NewSQLiteChunkStore(filepath.Join(dataDir, "chunks.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}

	lexical, err := store.NewBleveLexicalIndex(filepath.Join(dataDir, "bleve"), store.DefaultLexicalConfig())
	if err != nil {
		_ = chunks.Close()
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}

	vectors, err := store.NewHNSWIndex(store.DefaultVectorConfig(dimensions))
	if err != nil {
		_ = chunks.Close()
		_ = lexical.Close()
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vectors.Load(vectorPath); err != nil {
			_ = chunks.Close()
			_ = lexical.Close()
			_ = vectors.Close()
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	}

	return &store.Snapshot{Chunks: chunks, Lexical: lexical, Vector: vectors}, nil
}

// engineConfigFrom maps file configuration onto the engine's tuning knobs.
func engineConfigFrom(cfg *config.Config) search.Config {
	return search.Config{
		FusionMethod: search.FusionMethod(cfg.Search.FusionMethod),
		RRFConstant:  cfg.Search.RRFConstant,
		Weights: search.Weights{
			Lexical: cfg.Search.LexicalWeight,
			Vector:  cfg.Search.VectorWeight,
		},
		RetrievalMultiplier: cfg.Search.RetrievalMultiplier,
		MaxFetch:            cfg.Search.TopKInitial,
		MaxResults:          cfg.Search.MaxResults,
		EntityBoost:         cfg.Boost.EntityWeight,
		EpicBoost:           cfg.Boost.EpicBoost,
		EpicPenalty:         cfg.Boost.EpicPenalty,
		EpicHardFilter:      cfg.Boost.EpicHardFilter,
		HardFilterMargin:    cfg.Boost.HardFilterMargin,
		SourceWeights:       cfg.Boost.SourceWeights,
		MMRLambda:           cfg.Diversity.Lambda,
		SimilarityThreshold: cfg.Diversity.SimilarityThreshold,
		MaxPerPage:          cfg.Diversity.MaxPerPage,
		MaxSubQueries:       cfg.Search.MaxSubQueries,
	}
}

// openApp wires configuration, embedder, index snapshot reloading, and the
// search engine for the query commands. The caller must Close it.
func openApp(ctx context.Context, offline bool) (*app, error) {
	root, cfg, err := resolveProject(projectDir)
	if err != nil {
		return nil, err
	}

	dataDir := resolvePath(root, cfg.Paths.DataDir)
	docsDir := resolvePath(root, cfg.Paths.DocsDir)

	if _, err := os.Stat(filepath.Join(dataDir, "chunks.db")); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found in %s. Run 'itihasa index' first", dataDir)
	}

	embedder, err := newEmbedder(ctx, cfg, offline)
	if err != nil {
		return nil, err
	}

	initial, err := openSnapshot(dataDir, embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	if err := index.VerifyModelIdentity(ctx, initial.Chunks, embedder); err != nil {
		closeSnapshot(initial)
		_ = embedder.Close()
		return nil, err
	}

	reloader, err := store.NewReloader(dataDir, initial, func(ctx context.Context) (*store.Snapshot, error) {
		return openSnapshot(dataDir, embedder.Dimensions())
	})
	if err != nil {
		closeSnapshot(initial)
		_ = embedder.Close()
		return nil, err
	}
	if err := reloader.Start(ctx); err != nil {
		closeSnapshot(initial)
		_ = embedder.Close()
		return nil, err
	}

	engine := search.NewEngine(engineConfigFrom(cfg), embedder, reloader.Snapshot)
	if cfg.Reranker.Enabled && cfg.Reranker.Endpoint != "" {
		engine.SetReranker(search.NewHTTPReranker(cfg.Reranker.Endpoint, cfg.Reranker.Model))
	}

	return &app{
		root:     root,
		cfg:      cfg,
		dataDir:  dataDir,
		docsDir:  docsDir,
		embedder: embedder,
		reloader: reloader,
		engine:   engine,
	}, nil
}

// Close stops the reloader and releases the index handles.
func (a *app) Close() {
	if a.reloader != nil {
		a.reloader.Stop()
		closeSnapshot(a.reloader.Snapshot())
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
}

func closeSnapshot(s *store.Snapshot) {
	if s == nil {
		return
	}
	if s.Lexical != nil {
		_ = s.Lexical.Close()
	}
	if s.Vector != nil {
		_ = s.Vector.Close()
	}
	if s.Chunks != nil {
		_ = s.Chunks.Close()
	}
}

// newResponseCache builds the response cache, or nil when disabled.
func newResponseCache(a *app) (*cache.ResponseCache, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.New(a.cfg.Cache.MaxSize,
		cache.WithTTL(time.Duration(a.cfg.Cache.TTLHours)*time.Hour),
		cache.WithPersistence(resolvePath(a.root, a.cfg.Cache.FilePath)),
	)
}

// newGenerator builds the Ollama answer generator from configuration.
func newGenerator(cfg *config.Config) *llm.OllamaGenerator {
	return llm.NewOllamaGenerator(llm.Config{
		Host:    cfg.Generator.OllamaHost,
		Model:   cfg.Generator.Model,
		Timeout: time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
	})
}

// newMetrics opens the telemetry collector over the chunk store's database.
// Flushing happens on Close; the CLI is one query per process.
func newMetrics(a *app) (*telemetry.QueryMetrics, error) {
	chunks, ok := a.reloader.Snapshot().Chunks.(*store.SQLiteChunkStore)
	if !ok {
		return telemetry.NewQueryMetricsWithConfig(nil, telemetry.QueryMetricsConfig{}), nil
	}

	metricsStore, err := telemetry.NewSQLiteMetricsStore(chunks.DB())
	if err != nil {
		return nil, err
	}
	return telemetry.NewQueryMetricsWithConfig(metricsStore, telemetry.QueryMetricsConfig{}), nil
}
