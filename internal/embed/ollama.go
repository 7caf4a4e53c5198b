package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaEmbedder embeds text through Ollama's /api/embed endpoint.
//
// Timeouts are per request, not on the http.Client: the first call after
// a quiet period may have to load the model, which takes far longer than
// a warm call, so the deadline depends on when the embedder last ran.
type OllamaEmbedder struct {
	cfg       OllamaConfig
	client    *http.Client
	transport *http.Transport
	modelName string
	dims      int

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama, resolves the embedding model
// (falling back through FallbackModels), and detects the embedding
// dimension unless the config pins it.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = FallbackOllamaModels
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}

	// Short idle timeout: CLI processes exit quickly and should not
	// leave connections behind.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &OllamaEmbedder{
		cfg:       cfg,
		client:    &http.Client{Transport: transport},
		transport: transport,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, DefaultColdTimeout)
		defer cancel()

		model, err := e.resolveModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("failed to connect to Ollama or find model: %w", err)
		}
		e.modelName = model

		if e.dims == 0 {
			probe, err := e.post(checkCtx, []string{"dimension probe"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			if len(probe) == 0 || len(probe[0]) == 0 {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("empty embedding returned during dimension probe")
			}
			e.dims = len(probe[0])
		}
	}

	if e.dims == 0 {
		e.dims = DefaultDimensions
	}
	return e, nil
}

// resolveModel picks the configured model from the server's installed
// list, trying fallbacks in order. Names match with or without tags.
func (e *OllamaEmbedder) resolveModel(ctx context.Context) (string, error) {
	models, err := e.installedModels(ctx)
	if err != nil {
		return "", err
	}

	installed := make(map[string]string, len(models)*2)
	for _, m := range models {
		lower := strings.ToLower(m.Name)
		installed[lower] = m.Name
		if base, _, ok := strings.Cut(lower, ":"); ok {
			if _, seen := installed[base]; !seen {
				installed[base] = m.Name
			}
		}
	}

	for _, want := range append([]string{e.cfg.Model}, e.cfg.FallbackModels...) {
		lower := strings.ToLower(want)
		if actual, ok := installed[lower]; ok {
			return actual, nil
		}
		if base, _, ok := strings.Cut(lower, ":"); ok {
			if actual, found := installed[base]; found {
				return actual, nil
			}
		}
	}

	return "", fmt.Errorf("no embedding model available (tried %s and %v)",
		e.cfg.Model, e.cfg.FallbackModels)
}

func (e *OllamaEmbedder) installedModels(ctx context.Context) ([]OllamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var list OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	return list.Models, nil
}

// Embed returns the embedding for one text. Blank input embeds to the
// zero vector without a network call.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	vectors, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in config-sized batches, preserving input
// order. Blank texts become zero vectors and are not sent to the API.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.cfg.BatchSize, len(pending))
		batch := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			batch = append(batch, texts[idx])
		}

		vectors, err := e.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for i, v := range vectors {
			results[pending[start+i]] = v
		}

		if e.cfg.ProgressFunc != nil {
			e.cfg.ProgressFunc(end, len(pending))
		}
	}

	return results, nil
}

// embedWithRetry retries transient failures with exponential backoff,
// giving each attempt a warm or cold deadline.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		timeout := e.requestTimeout()
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		vectors, err := e.post(attemptCtx, texts)
		cancel()

		if err == nil {
			e.touch()
			return vectors, nil
		}
		lastErr = err

		slog.Debug("embedding_attempt_failed",
			slog.Int("attempt", attempt+1),
			slog.Duration("timeout", timeout),
			slog.String("error", err.Error()))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", e.cfg.MaxRetries, lastErr)
}

// requestTimeout returns the cold deadline when the model has likely
// been unloaded, the warm one otherwise.
func (e *OllamaEmbedder) requestTimeout() time.Duration {
	e.mu.Lock()
	last := e.lastUsed
	e.mu.Unlock()

	if last.IsZero() || time.Since(last) > ModelUnloadThreshold {
		return DefaultColdTimeout
	}
	return DefaultWarmTimeout
}

func (e *OllamaEmbedder) touch() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

// post sends one /api/embed request and returns unit-normalized vectors.
func (e *OllamaEmbedder) post(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vectors := make([][]float32, len(decoded.Embeddings))
	for i, emb := range decoded.Embeddings {
		v := make([]float32, len(emb))
		for j, val := range emb {
			v[j] = float32(val)
		}
		vectors[i] = normalizeVector(v)
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the resolved model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available reports whether the server answers and still has the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}

	models, err := e.installedModels(ctx)
	if err != nil {
		return false
	}

	want := strings.ToLower(e.modelName)
	for _, m := range models {
		have := strings.ToLower(m.Name)
		if have == want || strings.HasPrefix(have, want+":") || strings.HasPrefix(want, have+":") {
			return true
		}
	}
	return false
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close releases idle connections. Safe to call twice.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
