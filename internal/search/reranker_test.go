package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayodhya-labs/itihasa/internal/store"
)

func rerankCandidate(id, text string) *Candidate {
	return &Candidate{Chunk: &store.Chunk{ID: id, Text: text}}
}

// newScoringServer returns a server that scores documents by the given
// function, plus a request counter.
func newScoringServer(t *testing.T, score func(doc string) float64) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		scores := make([]float64, len(req.Documents))
		for i, doc := range req.Documents {
			scores[i] = score(doc)
		}
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestNoOpReranker_KeepsOrder(t *testing.T) {
	r := NoOpReranker{}
	in := []*Candidate{rerankCandidate("a", "one"), rerankCandidate("b", "two")}

	out, err := r.Rerank(context.Background(), "query", in)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, r.Available(context.Background()))
}

func TestHTTPReranker_ReordersByScore(t *testing.T) {
	// Given: a scorer that strongly prefers the second document
	srv, _ := newScoringServer(t, func(doc string) float64 {
		if doc == "relevant passage" {
			return 0.95
		}
		return 0.1
	})
	r := NewHTTPReranker(srv.URL, "test-model")

	in := []*Candidate{
		rerankCandidate("a", "irrelevant passage"),
		rerankCandidate("b", "relevant passage"),
	}

	// When
	out, err := r.Rerank(context.Background(), "query", in)

	// Then
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Chunk.ID)
	assert.Equal(t, "a", out[1].Chunk.ID)
}

func TestHTTPReranker_SingleCandidateSkipsCall(t *testing.T) {
	srv, requests := newScoringServer(t, func(string) float64 { return 0.5 })
	r := NewHTTPReranker(srv.URL, "")

	in := []*Candidate{rerankCandidate("a", "one")}
	out, err := r.Rerank(context.Background(), "query", in)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Zero(t, requests.Load())
}

func TestHTTPReranker_ServerErrorDegradesToOriginalOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	r := NewHTTPReranker(srv.URL, "")

	in := []*Candidate{rerankCandidate("a", "one"), rerankCandidate("b", "two")}
	out, err := r.Rerank(context.Background(), "query", in)

	// Reranking is best-effort: no error, fused order preserved.
	require.NoError(t, err)
	assert.Equal(t, []*Candidate{in[0], in[1]}, out)
}

func TestHTTPReranker_ScoreCountMismatchDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.5}})
	}))
	t.Cleanup(srv.Close)
	r := NewHTTPReranker(srv.URL, "")

	in := []*Candidate{rerankCandidate("a", "one"), rerankCandidate("b", "two")}
	out, err := r.Rerank(context.Background(), "query", in)

	require.NoError(t, err)
	assert.Equal(t, "a", out[0].Chunk.ID)
}

func TestHTTPReranker_CircuitBreakerStopsCalls(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	r := NewHTTPReranker(srv.URL, "")

	in := []*Candidate{rerankCandidate("a", "one"), rerankCandidate("b", "two")}

	// When: failures push the breaker open, further calls never hit the
	// server
	for i := 0; i < 5; i++ {
		_, err := r.Rerank(context.Background(), "query", in)
		require.NoError(t, err)
	}

	// Then
	assert.Equal(t, int32(3), requests.Load())
}

func TestHTTPReranker_Available(t *testing.T) {
	t.Run("healthy endpoint", func(t *testing.T) {
		srv, _ := newScoringServer(t, func(string) float64 { return 0.5 })
		r := NewHTTPReranker(srv.URL, "")

		assert.True(t, r.Available(context.Background()))
	})

	t.Run("dead endpoint", func(t *testing.T) {
		r := NewHTTPReranker("http://127.0.0.1:1", "")

		assert.False(t, r.Available(context.Background()))
	})
}
