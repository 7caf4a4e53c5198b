// Package llm provides text generation for answer synthesis and optional
// query decomposition via Ollama's HTTP API.
package llm

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

	apperrors "github.com/ayodhya-labs/itihasa/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultModel is the default generation model
	DefaultModel = "llama3.1:8b"

	// DefaultTimeout bounds a single generation request. Long answers over
	// 15 retrieved chunks can take a while on CPU-only hosts.
	DefaultTimeout = 120 * time.Second
)

// Generator produces text completions.
type Generator interface {
	// Generate returns the completion for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the generator is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config configures the Ollama generator.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:    DefaultOllamaHost,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// OllamaGenerator generates text using Ollama's /api/generate endpoint.
type OllamaGenerator struct {
	client    *http.Client
	transport *http.Transport
	config    Config
	breaker   *apperrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator. No health check is performed here;
// availability is probed lazily so the engine can start without Ollama and
// still serve raw retrieval results.
func NewOllamaGenerator(cfg Config) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	return &OllamaGenerator{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		// Trips after repeated failures so a downed Ollama degrades the
		// engine to retrieval-only instead of stalling every request.
		breaker: apperrors.NewCircuitBreaker("generator",
			apperrors.WithMaxFailures(3),
			apperrors.WithResetTimeout(30*time.Second),
		),
	}
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the non-streaming /api/generate response.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns the completion for a prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", apperrors.New(apperrors.ErrCodeModelUnavailable, "generator is closed", nil)
	}
	g.mu.RUnlock()

	if strings.TrimSpace(prompt) == "" {
		return "", apperrors.ValidationError("prompt must not be empty", nil)
	}

	var answer string
	err := g.breaker.Execute(func() error {
		var genErr error
		answer, genErr = g.doGenerate(ctx, prompt)
		return genErr
	})
	if err != nil {
		if apperrors.GetCode(err) != "" {
			return "", err
		}
		return "", apperrors.New(apperrors.ErrCodeModelUnavailable, "generation failed", err).
			WithSuggestion("Check that Ollama is running: ollama serve")
	}
	return answer, nil
}

func (g *OllamaGenerator) doGenerate(ctx context.Context, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := g.config.Host + "/api/generate"
	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return "", apperrors.New(apperrors.ErrCodeModelTimeout,
				fmt.Sprintf("generation timed out after %s", g.config.Timeout), nil)
		}
		return "", fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	slog.Debug("generation_complete",
		slog.String("model", g.config.Model),
		slog.Duration("took", time.Since(start)),
		slog.Int("response_chars", len(result.Response)))

	return strings.TrimSpace(result.Response), nil
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

// Available checks if Ollama responds and the model is installed.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	g.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	want := strings.ToLower(g.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return true
		}
	}
	return false
}

// Close releases resources.
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if g.transport != nil {
		g.transport.CloseIdleConnections()
	}
	return nil
}
