package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayodhya-labs/itihasa/internal/embed"
	apperrors "github.com/ayodhya-labs/itihasa/internal/errors"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

// Config tunes the retrieval engine.
type Config struct {
	// FusionMethod selects rrf or weighted fusion.
	FusionMethod FusionMethod

	// RRFConstant is the RRF smoothing constant k.
	RRFConstant int

	// Weights are the per-leg fusion weights.
	Weights Weights

	// RetrievalMultiplier widens each leg's fetch beyond the requested
	// top-k so fusion and filtering have material to work with.
	RetrievalMultiplier int

	// MaxFetch caps a single leg's fetch size.
	MaxFetch int

	// MaxResults caps the final result count regardless of strategy.
	MaxResults int

	// EntityBoost, EpicBoost, EpicPenalty, HardFilterMargin configure the
	// score adjustment stages. Zero values use stage defaults.
	EntityBoost      float64
	EpicBoost        float64
	EpicPenalty      float64
	HardFilterMargin int

	// EpicHardFilter drops wrong-epic chunks before fusion when the cue
	// margin is decisive. Off by default: soft bias only.
	EpicHardFilter bool

	// SourceWeights multiplies scores per source document.
	SourceWeights map[string]float64

	// MMRLambda, SimilarityThreshold, MaxPerPage configure diversity.
	MMRLambda           float64
	SimilarityThreshold float64
	MaxPerPage          int

	// MaxSubQueries bounds decomposition.
	MaxSubQueries int
}

// DefaultEngineConfig returns the tuned defaults.
func DefaultEngineConfig() Config {
	return Config{
		FusionMethod:        FusionRRF,
		RRFConstant:         DefaultRRFConstant,
		Weights:             DefaultWeights(),
		RetrievalMultiplier: 4,
		MaxFetch:            50,
		MaxResults:          20,
		MMRLambda:           DefaultMMRLambda,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxPerPage:          DefaultMaxPerPage,
		MaxSubQueries:       DefaultMaxSubQueries,
	}
}

// Options adjusts a single query.
type Options struct {
	// TopK overrides the routed result count (0 = use strategy).
	TopK int

	// FileFilter restricts retrieval to one source document.
	FileFilter string

	// Deep widens decomposition and fan-out for thorough research.
	Deep bool

	// History holds the previous queries of the conversation, oldest
	// first. Follow-up detection only fires when it is non-empty.
	History []string
}

// Engine runs the adaptive retrieval pipeline over live index snapshots.
type Engine struct {
	cfg        Config
	embedder   embed.Embedder
	snapshot   func() *store.Snapshot
	classifier *Classifier
	router     *Router
	decomposer *Decomposer
	fuser      *Fuser
	entity     *EntityBooster
	epic       *EpicBias
	quality    *QualityFilter
	reranker   Reranker
}

// NewEngine wires the pipeline. snapshot supplies the current index handles
// on every query so a background reload is picked up immediately.
func NewEngine(cfg Config, embedder embed.Embedder, snapshot func() *store.Snapshot) *Engine {
	if cfg.RetrievalMultiplier <= 0 {
		cfg.RetrievalMultiplier = 4
	}
	if cfg.MaxFetch <= 0 {
		cfg.MaxFetch = 50
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}

	quality := NewQualityFilter()
	quality.SourceWeights = cfg.SourceWeights

	return &Engine{
		cfg:        cfg,
		embedder:   embedder,
		snapshot:   snapshot,
		classifier: NewClassifier(),
		router:     NewRouter(),
		decomposer: NewDecomposer(cfg.MaxSubQueries),
		fuser:      NewFuser(cfg.FusionMethod, cfg.RRFConstant, cfg.Weights),
		entity:     NewEntityBooster(cfg.EntityBoost),
		epic:       NewEpicBias(cfg.EpicBoost, cfg.EpicPenalty, cfg.HardFilterMargin, cfg.EpicHardFilter),
		quality:    quality,
		reranker:   NoOpReranker{},
	}
}

// SetReranker installs a cross-encoder reranker.
func (e *Engine) SetReranker(r Reranker) {
	if r != nil {
		e.reranker = r
	}
}

// SetDecomposerGenerator enables LLM-refined decomposition.
func (e *Engine) SetDecomposerGenerator(g SubQueryGenerator) {
	e.decomposer.WithGenerator(g)
}

// Router exposes routing statistics.
func (e *Engine) Router() *Router { return e.router }

// Query runs the full pipeline: classify, route, decompose, retrieve,
// adjust, rerank, diversify.
func (e *Engine) Query(ctx context.Context, query string, opts Options) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, apperrors.EmptyQueryError()
	}

	requestID := uuid.NewString()[:8]
	snap := e.snapshot()
	if snap == nil {
		return nil, apperrors.StorageError("no index loaded", nil).
			WithSuggestion("Run 'itihasa index' to build the indexes")
	}

	logger := slog.With(slog.String("request_id", requestID))

	cls := e.classifier.ClassifyWithHistory(query, opts.History)
	strat := e.router.Route(cls)

	if count, err := snap.Chunks.Count(ctx); err == nil {
		strat = e.router.OptimizeForCorpus(strat, count)
	}
	if opts.TopK > 0 {
		strat.TopK = opts.TopK
		strat.RerankTopK = rerankDepth(opts.TopK)
	}
	if strat.TopK > e.cfg.MaxResults {
		strat.TopK = e.cfg.MaxResults
	}

	logger.Info("query_routed",
		slog.String("type", string(cls.Type)),
		slog.Float64("confidence", cls.Confidence),
		slog.String("complexity", string(cls.Complexity)),
		slog.String("route", strat.Route),
		slog.Int("top_k", strat.TopK))

	intent := e.epic.Detect(query, opts.FileFilter)

	subQueries := []string{query}
	if strat.Decompose || opts.Deep {
		dec := e.decomposer
		if opts.Deep {
			dec = NewDecomposer(DeepMaxSubQueries).WithGenerator(e.decomposer.generator)
		}
		subQueries = dec.Decompose(ctx, query)
	}

	var degradedFlag atomic.Bool
	retrieve := func(ctx context.Context, q string, limit int) ([]*Candidate, error) {
		pool, deg, err := e.retrieveOne(ctx, snap, q, limit, opts.FileFilter, intent)
		if deg {
			degradedFlag.Store(true)
		}
		return pool, err
	}

	pool, err := fanOut(ctx, subQueries, strat.TopK, opts.Deep, retrieve)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNoResults, "no passages matched the query", nil).
			WithDetail("query", query)
	}

	// Score adjustment: hard validity gate, then entity boost, epic bias,
	// and quality penalty, in that order.
	pool = e.quality.FilterValid(pool)
	e.entity.Apply(pool, query)
	pool = e.epic.Apply(pool, intent)
	e.quality.Adjust(pool)

	sortByScore(pool)

	// Reranking sees a window of the adjusted pool, only when there is
	// more than one page of results to reorder.
	if len(pool) > strat.TopK {
		window := strat.RerankTopK
		if window > len(pool) {
			window = len(pool)
		}
		reranked, rerr := e.reranker.Rerank(ctx, query, pool[:window])
		if rerr == nil {
			copy(pool[:window], reranked)
		}
	}

	// Diversity selection only has work when the pool overfills topK.
	var results []*Candidate
	var diversityGain float64
	if len(pool) > strat.TopK {
		div := e.newDiversifier(snap)
		selected, dstats := div.Select(pool, strat.TopK)
		results = selected
		diversityGain = dstats.Gain
		logger.Debug("diversity_applied",
			slog.Int("input", dstats.Input),
			slog.Int("selected", dstats.Selected),
			slog.Int("near_duplicates", dstats.NearDuplicates),
			slog.Int("page_capped", dstats.PageCapped),
			slog.Float64("gain", dstats.Gain))
	} else {
		results = pool
	}
	if len(results) > strat.TopK {
		results = results[:strat.TopK]
	}

	resp := &Response{
		Query:          query,
		RequestID:      requestID,
		Classification: cls,
		Strategy:       strat,
		SubQueries:     subQueries,
		Results:        toResults(results),
		Degraded:       degradedFlag.Load(),
		DiversityGain:  diversityGain,
		Took:           time.Since(start),
	}

	logger.Info("query_complete",
		slog.Int("results", len(resp.Results)),
		slog.Bool("degraded", degradedFlag.Load()),
		slog.Duration("took", resp.Took))

	return resp, nil
}

// retrieveOne runs both retrieval legs for one sub-query and fuses them.
// Returns (candidates, degraded, error); degraded means a leg was skipped.
func (e *Engine) retrieveOne(ctx context.Context, snap *store.Snapshot, query string, topK int, fileFilter string, intent EpicIntent) ([]*Candidate, bool, error) {
	fetch := topK * e.cfg.RetrievalMultiplier
	if fetch > e.cfg.MaxFetch {
		fetch = e.cfg.MaxFetch
	}
	if fetch < topK {
		fetch = topK
	}

	degraded := false

	var lexResults []*store.LexicalResult
	if snap.Lexical != nil && snap.Lexical.Available() {
		var err error
		lexResults, err = snap.Lexical.Search(ctx, ExpandQuery(query), fetch, fileFilter)
		if err != nil {
			slog.Warn("lexical_leg_failed", slog.String("error", err.Error()))
			lexResults = nil
			degraded = true
		}
	} else {
		degraded = true
	}

	var vecResults []*store.VectorResult
	if snap.Vector != nil && e.embedder != nil {
		queryVec, err := e.embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("query_embedding_failed", slog.String("error", err.Error()))
			degraded = true
		} else {
			vecResults, err = snap.Vector.Search(ctx, queryVec, fetch, fileFilter)
			if err != nil {
				slog.Warn("vector_leg_failed", slog.String("error", err.Error()))
				vecResults = nil
				degraded = true
			}
		}
	} else {
		degraded = true
	}

	if len(lexResults) == 0 && len(vecResults) == 0 {
		return []*Candidate{}, degraded, nil
	}

	// A hard epic intent excludes wrong-epic chunks from both legs before
	// fusion so they cannot displace in-epic chunks from the rank lists.
	if intent.Hard && intent.Epic != "" {
		lexResults, vecResults = e.filterLegsByEpic(ctx, snap, lexResults, vecResults, intent)
	}

	candidates := e.fuser.Fuse(lexResults, vecResults)
	candidates, err := e.hydrate(ctx, snap, candidates)
	if err != nil {
		return nil, degraded, err
	}
	return candidates, degraded, nil
}

// filterLegsByEpic resolves each leg result's source document and drops
// those Admit rejects. Results whose chunk cannot be resolved are kept;
// hydrate discards stale IDs later anyway. A lookup failure leaves both
// legs untouched, the bias stage must never sink retrieval.
func (e *Engine) filterLegsByEpic(ctx context.Context, snap *store.Snapshot, lex []*store.LexicalResult, vec []*store.VectorResult, intent EpicIntent) ([]*store.LexicalResult, []*store.VectorResult) {
	ids := make([]string, 0, len(lex)+len(vec))
	seen := make(map[string]bool, len(lex)+len(vec))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range lex {
		add(r.DocID)
	}
	for _, r := range vec {
		add(r.ID)
	}

	chunks, err := snap.Chunks.GetChunks(ctx, ids)
	if err != nil {
		slog.Warn("epic_filter_lookup_failed", slog.String("error", err.Error()))
		return lex, vec
	}
	fileOf := make(map[string]string, len(chunks))
	for _, ch := range chunks {
		fileOf[ch.ID] = ch.FileName
	}

	keptLex := lex[:0]
	for _, r := range lex {
		if file, ok := fileOf[r.DocID]; !ok || e.epic.Admit(file, intent) {
			keptLex = append(keptLex, r)
		}
	}
	keptVec := vec[:0]
	for _, r := range vec {
		if file, ok := fileOf[r.ID]; !ok || e.epic.Admit(file, intent) {
			keptVec = append(keptVec, r)
		}
	}
	return keptLex, keptVec
}

// hydrate fills candidate chunks from the chunk store, dropping candidates
// whose chunk is gone (stale index entries after a reindex).
func (e *Engine) hydrate(ctx context.Context, snap *store.Snapshot, candidates []*Candidate) ([]*Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Chunk.ID
	}

	chunks, err := snap.Chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, apperrors.StorageError("failed to load chunk text", err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	kept := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if ch, ok := byID[c.Chunk.ID]; ok {
			c.Chunk = ch
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (e *Engine) newDiversifier(snap *store.Snapshot) *Diversifier {
	div := NewDiversifier(snap.Vector)
	if e.cfg.MMRLambda > 0 {
		div.Lambda = e.cfg.MMRLambda
	}
	if e.cfg.SimilarityThreshold > 0 {
		div.SimilarityThreshold = e.cfg.SimilarityThreshold
	}
	if e.cfg.MaxPerPage > 0 {
		div.MaxPerPage = e.cfg.MaxPerPage
	}
	return div
}

// sortByScore orders by adjusted score with the fusion tiebreaks.
func sortByScore(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return compareCandidates(a, b)
	})
}

func toResults(candidates []*Candidate) []*Result {
	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, &Result{
			Chunk:        c.Chunk,
			Score:        c.Score,
			LexScore:     c.LexScore,
			VecScore:     c.VecScore,
			InBothLegs:   c.InBothLegs,
			MatchedTerms: c.MatchedTerms,
		})
	}
	return results
}
