package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	apperrors "github.com/ayodhya-labs/itihasa/internal/errors"
)

// Reranker reorders candidates by query relevance using a cross-encoder.
// Rerank returns the candidates in their new order; implementations must
// not drop any.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, error)
	Available(ctx context.Context) bool
}

// NoOpReranker keeps the incoming order. It stands in when no reranking
// service is configured and in tests that need deterministic ordering.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

// Rerank returns candidates unchanged.
func (NoOpReranker) Rerank(_ context.Context, _ string, candidates []*Candidate) ([]*Candidate, error) {
	return candidates, nil
}

// Available always reports true.
func (NoOpReranker) Available(context.Context) bool { return true }

// HTTPReranker calls an external cross-encoder scoring endpoint. A circuit
// breaker degrades to the fused order when the service misbehaves, so a
// dead reranker slows nothing down.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
	breaker  *apperrors.CircuitBreaker
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker client for the given endpoint.
func NewHTTPReranker(endpoint, model string) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		breaker: apperrors.NewCircuitBreaker("reranker",
			apperrors.WithMaxFailures(3),
			apperrors.WithResetTimeout(30*time.Second),
		),
	}
}

// rerankRequest is the scoring request body.
type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse carries one relevance score per input document.
type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank reorders candidates by cross-encoder score. On any failure the
// original order is returned with a nil error; reranking is best-effort.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	var reranked []*Candidate
	err := r.breaker.Execute(func() error {
		var rerr error
		reranked, rerr = r.doRerank(ctx, query, candidates)
		return rerr
	})
	if err != nil {
		slog.Warn("rerank_degraded",
			slog.String("endpoint", r.endpoint),
			slog.String("error", err.Error()))
		return candidates, nil
	}
	return reranked, nil
}

func (r *HTTPReranker) doRerank(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = chunkText(c)
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(result.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(result.Scores), len(candidates))
	}

	type scored struct {
		c     *Candidate
		score float64
	}
	rows := make([]scored, len(candidates))
	for i, c := range candidates {
		rows[i] = scored{c, result.Scores[i]}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].score > rows[j].score
	})

	out := make([]*Candidate, len(rows))
	for i, row := range rows {
		out[i] = row.c
	}
	return out, nil
}

// Available probes the endpoint with a trivial request.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body, _ := json.Marshal(rerankRequest{Model: r.model, Query: "ping", Documents: []string{"ping"}})
	req, err := http.NewRequestWithContext(checkCtx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
