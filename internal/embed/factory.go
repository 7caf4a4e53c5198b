package embed

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline fallback, no model
	// download, reduced semantic quality)
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	Provider  ProviderType
	Model     string
	Host      string // Ollama host ("" = default)
	BatchSize int
	CacheSize int // Query embedding cache entries (0 = default, <0 = disabled)
}

// NewEmbedder creates an embedder from options. The result is wrapped with
// an LRU query cache unless CacheSize is negative; there is no silent
// provider fallback, a missing Ollama is an error the user must resolve.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var embedder Embedder
	var err error

	switch opts.Provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama, "":
		cfg := DefaultOllamaConfig()
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Host != "" {
			cfg.Host = opts.Host
		}
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}
		embedder, err = NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use keyword-only mode: set embedder.provider to \"static\"", err)
		}

	default:
		return nil, fmt.Errorf("unknown embedder provider %q (valid: %v)", opts.Provider, ValidProviders())
	}

	if opts.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	// Unwrap cached embedder to get underlying type
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
