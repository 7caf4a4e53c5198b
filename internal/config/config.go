// Package config loads and validates engine configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/itihasa/config.yaml)
//  3. Project config (.itihasa.yaml in the corpus root)
//  4. Environment variables (ITIHASA_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Boost     BoostConfig     `yaml:"boost" json:"boost"`
	Quality   QualityConfig   `yaml:"quality" json:"quality"`
	Diversity DiversityConfig `yaml:"diversity" json:"diversity"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Embedder  EmbedderConfig  `yaml:"embedder" json:"embedder"`
	Generator GeneratorConfig `yaml:"generator" json:"generator"`
	Reranker  RerankerConfig  `yaml:"reranker" json:"reranker"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
}

// PathsConfig locates the corpus and the on-disk indexes.
type PathsConfig struct {
	// DataDir is where indexes, the chunk store, and the response cache live.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// DocsDir is the directory holding the source documents.
	DocsDir string `yaml:"docs_dir" json:"docs_dir"`
}

// SearchConfig configures hybrid retrieval and fusion.
// Weights and the RRF constant are configurable via:
//  1. User config (~/.config/itihasa/config.yaml) - personal defaults
//  2. Project config (.itihasa.yaml) - per-corpus tuning
//  3. Env vars (ITIHASA_LEXICAL_WEIGHT, ITIHASA_VECTOR_WEIGHT, ITIHASA_RRF_CONSTANT)
type SearchConfig struct {
	// LexicalWeight is the weight for BM25 keyword matching (0.0-1.0).
	// Must sum to 1.0 with VectorWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// VectorWeight is the weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with LexicalWeight.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60. Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// FusionMethod selects the fusion algorithm: "rrf" or "weighted".
	FusionMethod string `yaml:"fusion_method" json:"fusion_method"`

	// RetrievalMultiplier is how many candidates each leg fetches per
	// final result slot (k * multiplier).
	RetrievalMultiplier int `yaml:"retrieval_multiplier" json:"retrieval_multiplier"`

	// TopKInitial caps the candidate pool before reranking.
	TopKInitial int `yaml:"top_k_initial" json:"top_k_initial"`

	// MaxResults caps the final result count regardless of strategy.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// DecomposeWithLLM enables the LLM decomposition pass on top of the
	// rule patterns.
	DecomposeWithLLM bool `yaml:"decompose_with_llm" json:"decompose_with_llm"`

	// MinSubQueryLength drops LLM-produced sub-queries shorter than this.
	MinSubQueryLength int `yaml:"min_sub_query_length" json:"min_sub_query_length"`

	// Deep search: wider fan-out for analytical sessions.
	DeepMaxSubQueries   int     `yaml:"deep_max_sub_queries" json:"deep_max_sub_queries"`
	MaxSubQueries       int     `yaml:"max_sub_queries" json:"max_sub_queries"`
	DeepDocsPerSubQuery int     `yaml:"deep_docs_per_sub_query" json:"deep_docs_per_sub_query"`
	DeepTopKMultiplier  float64 `yaml:"deep_top_k_multiplier" json:"deep_top_k_multiplier"`
}

// BoostConfig configures entity and epic score adjustments.
type BoostConfig struct {
	// EntityWeight is the additive boost per matched entity synonym group.
	EntityWeight float64 `yaml:"entity_weight" json:"entity_weight"`

	// EpicBoost is added when a chunk's source epic matches the query bias.
	EpicBoost float64 `yaml:"epic_boost" json:"epic_boost"`

	// EpicPenalty is subtracted (floored at 0) on an epic mismatch.
	EpicPenalty float64 `yaml:"epic_penalty" json:"epic_penalty"`

	// EpicHardFilter enables dropping wrong-epic chunks before fusion
	// when the cue margin is decisive. Off by default: even a confident
	// detection only biases scores.
	EpicHardFilter bool `yaml:"epic_hard_filter" json:"epic_hard_filter"`

	// HardFilterMargin is the cue-count margin required before the hard
	// filter, when enabled, drops mismatching chunks instead of
	// penalizing them.
	HardFilterMargin int `yaml:"hard_filter_margin" json:"hard_filter_margin"`

	// SourceWeights maps file names (exact, then substring) to score
	// multipliers, so curated translations can outrank noisy scans.
	SourceWeights map[string]float64 `yaml:"source_weights" json:"source_weights"`
}

// QualityConfig configures the chunk validity filter and quality scoring.
type QualityConfig struct {
	// MinChunkLength rejects chunks shorter than this many characters.
	MinChunkLength int `yaml:"min_chunk_length" json:"min_chunk_length"`

	// MinPrintableRatio rejects chunks with too many unprintable bytes.
	MinPrintableRatio float64 `yaml:"min_printable_ratio" json:"min_printable_ratio"`

	// MinAlphaRatio rejects chunks that are mostly symbols or digits.
	MinAlphaRatio float64 `yaml:"min_alpha_ratio" json:"min_alpha_ratio"`

	// PenaltyWeight scales how hard low quality drags the adjusted score.
	PenaltyWeight float64 `yaml:"penalty_weight" json:"penalty_weight"`
}

// DiversityConfig configures MMR re-ranking and page dedup.
type DiversityConfig struct {
	// Lambda balances relevance (1.0) against diversity (0.0).
	Lambda float64 `yaml:"lambda" json:"lambda"`

	// SimilarityThreshold counts a candidate as a near-duplicate.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// MaxPerPage caps chunks kept per (file, page) bucket.
	MaxPerPage int `yaml:"max_per_page" json:"max_per_page"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled turns response caching on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// TTLHours is how long a cached answer stays fresh.
	TTLHours int `yaml:"ttl_hours" json:"ttl_hours"`

	// MaxSize is the LRU capacity.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// FilePath is the JSON persistence path. Empty disables persistence.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // "ollama" or "static"
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// GeneratorConfig configures the answer-generation model.
type GeneratorConfig struct {
	Model          string `yaml:"model" json:"model"`
	OllamaHost     string `yaml:"ollama_host" json:"ollama_host"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RerankerConfig configures the optional cross-encoder reranker service.
type RerankerConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".itihasa",
			DocsDir: "docs",
		},
		Search: SearchConfig{
			LexicalWeight: 0.35,
			VectorWeight:  0.65,
			// k=60 is the standard RRF constant
			RRFConstant:         60,
			FusionMethod:        "rrf",
			RetrievalMultiplier: 4,
			TopKInitial:         50,
			MaxResults:          20,
			DecomposeWithLLM:    false,
			MinSubQueryLength:   10,
			DeepMaxSubQueries:   5,
			MaxSubQueries:       3,
			DeepDocsPerSubQuery: 6,
			DeepTopKMultiplier:  2.0,
		},
		Boost: BoostConfig{
			EntityWeight:     0.15,
			EpicBoost:        0.20,
			EpicPenalty:      0.10,
			HardFilterMargin: 2,
			SourceWeights:    map[string]float64{},
		},
		Quality: QualityConfig{
			MinChunkLength:    50,
			MinPrintableRatio: 0.8,
			MinAlphaRatio:     0.3,
			PenaltyWeight:     0.15,
		},
		Diversity: DiversityConfig{
			Lambda:              0.7,
			SimilarityThreshold: 0.85,
			MaxPerPage:          2,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTLHours: 24,
			MaxSize:  500,
			FilePath: "", // set from DataDir at load time when empty
		},
		Embedder: EmbedderConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 0, // auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // empty uses http://localhost:11434
			CacheSize:  1000,
		},
		Generator: GeneratorConfig{
			Model:          "llama3.1:8b",
			OllamaHost:     "",
			TimeoutSeconds: 120,
		},
		Reranker: RerankerConfig{
			Enabled:  false,
			Endpoint: "",
			Model:    "",
		},
		LogLevel: "info",
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/itihasa/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/itihasa/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "itihasa", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "itihasa", "config.yaml")
	}
	return filepath.Join(home, ".config", "itihasa", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil // no user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory, applying
// defaults, the user config, the project config, and env overrides in
// order of increasing precedence.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if cfg.Cache.FilePath == "" {
		cfg.Cache.FilePath = filepath.Join(cfg.Paths.DataDir, "response_cache.json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .itihasa.yaml or .itihasa.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".itihasa.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".itihasa.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.DocsDir != "" {
		c.Paths.DocsDir = other.Paths.DocsDir
	}

	// Search. Zero is not a practical value for weights, so only merge
	// non-zero values.
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.VectorWeight != 0 {
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.FusionMethod != "" {
		c.Search.FusionMethod = other.Search.FusionMethod
	}
	if other.Search.RetrievalMultiplier != 0 {
		c.Search.RetrievalMultiplier = other.Search.RetrievalMultiplier
	}
	if other.Search.TopKInitial != 0 {
		c.Search.TopKInitial = other.Search.TopKInitial
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.DecomposeWithLLM {
		c.Search.DecomposeWithLLM = true
	}
	if other.Search.MinSubQueryLength != 0 {
		c.Search.MinSubQueryLength = other.Search.MinSubQueryLength
	}
	if other.Search.DeepMaxSubQueries != 0 {
		c.Search.DeepMaxSubQueries = other.Search.DeepMaxSubQueries
	}
	if other.Search.MaxSubQueries != 0 {
		c.Search.MaxSubQueries = other.Search.MaxSubQueries
	}
	if other.Search.DeepDocsPerSubQuery != 0 {
		c.Search.DeepDocsPerSubQuery = other.Search.DeepDocsPerSubQuery
	}
	if other.Search.DeepTopKMultiplier != 0 {
		c.Search.DeepTopKMultiplier = other.Search.DeepTopKMultiplier
	}

	// Boost
	if other.Boost.EntityWeight != 0 {
		c.Boost.EntityWeight = other.Boost.EntityWeight
	}
	if other.Boost.EpicBoost != 0 {
		c.Boost.EpicBoost = other.Boost.EpicBoost
	}
	if other.Boost.EpicPenalty != 0 {
		c.Boost.EpicPenalty = other.Boost.EpicPenalty
	}
	if other.Boost.EpicHardFilter {
		c.Boost.EpicHardFilter = true
	}
	if other.Boost.HardFilterMargin != 0 {
		c.Boost.HardFilterMargin = other.Boost.HardFilterMargin
	}
	if len(other.Boost.SourceWeights) > 0 {
		c.Boost.SourceWeights = other.Boost.SourceWeights
	}

	// Quality
	if other.Quality.MinChunkLength != 0 {
		c.Quality.MinChunkLength = other.Quality.MinChunkLength
	}
	if other.Quality.MinPrintableRatio != 0 {
		c.Quality.MinPrintableRatio = other.Quality.MinPrintableRatio
	}
	if other.Quality.MinAlphaRatio != 0 {
		c.Quality.MinAlphaRatio = other.Quality.MinAlphaRatio
	}
	if other.Quality.PenaltyWeight != 0 {
		c.Quality.PenaltyWeight = other.Quality.PenaltyWeight
	}

	// Diversity
	if other.Diversity.Lambda != 0 {
		c.Diversity.Lambda = other.Diversity.Lambda
	}
	if other.Diversity.SimilarityThreshold != 0 {
		c.Diversity.SimilarityThreshold = other.Diversity.SimilarityThreshold
	}
	if other.Diversity.MaxPerPage != 0 {
		c.Diversity.MaxPerPage = other.Diversity.MaxPerPage
	}

	// Cache. Enabled defaults true; only TTL/size/path merge here, the
	// enabled flag is driven by env or explicit project config sections.
	if other.Cache.TTLHours != 0 {
		c.Cache.TTLHours = other.Cache.TTLHours
		c.Cache.Enabled = other.Cache.Enabled
	}
	if other.Cache.MaxSize != 0 {
		c.Cache.MaxSize = other.Cache.MaxSize
	}
	if other.Cache.FilePath != "" {
		c.Cache.FilePath = other.Cache.FilePath
	}

	// Embedder
	if other.Embedder.Provider != "" {
		c.Embedder.Provider = other.Embedder.Provider
	}
	if other.Embedder.Model != "" {
		c.Embedder.Model = other.Embedder.Model
	}
	if other.Embedder.Dimensions != 0 {
		c.Embedder.Dimensions = other.Embedder.Dimensions
	}
	if other.Embedder.BatchSize != 0 {
		c.Embedder.BatchSize = other.Embedder.BatchSize
	}
	if other.Embedder.OllamaHost != "" {
		c.Embedder.OllamaHost = other.Embedder.OllamaHost
	}
	if other.Embedder.CacheSize != 0 {
		c.Embedder.CacheSize = other.Embedder.CacheSize
	}

	// Generator
	if other.Generator.Model != "" {
		c.Generator.Model = other.Generator.Model
	}
	if other.Generator.OllamaHost != "" {
		c.Generator.OllamaHost = other.Generator.OllamaHost
	}
	if other.Generator.TimeoutSeconds != 0 {
		c.Generator.TimeoutSeconds = other.Generator.TimeoutSeconds
	}

	// Reranker
	if other.Reranker.Enabled {
		c.Reranker.Enabled = true
	}
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies ITIHASA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ITIHASA_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("ITIHASA_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("ITIHASA_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("ITIHASA_FUSION_METHOD"); v != "" {
		c.Search.FusionMethod = v
	}
	if v := os.Getenv("ITIHASA_OLLAMA_HOST"); v != "" {
		c.Embedder.OllamaHost = v
		c.Generator.OllamaHost = v
	}
	if v := os.Getenv("ITIHASA_EMBED_MODEL"); v != "" {
		c.Embedder.Model = v
	}
	if v := os.Getenv("ITIHASA_GENERATOR_MODEL"); v != "" {
		c.Generator.Model = v
	}
	if v := os.Getenv("ITIHASA_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
		c.Reranker.Enabled = true
	}
	if v := os.Getenv("ITIHASA_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("ITIHASA_CACHE_TTL_HOURS"); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t > 0 {
			c.Cache.TTLHours = t
		}
	}
	if v := os.Getenv("ITIHASA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ITIHASA_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the corpus root directory.
// It looks for a .git directory or a .itihasa.yaml/.yml file by walking
// up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".itihasa.yaml")) ||
			fileExists(filepath.Join(currentDir, ".itihasa.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root, fall back to where we started.
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return fmt.Errorf("vector_weight must be between 0 and 1, got %f", c.Search.VectorWeight)
	}

	sum := c.Search.LexicalWeight + c.Search.VectorWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("lexical_weight + vector_weight must equal 1.0, got %.2f", sum)
	}

	switch c.Search.FusionMethod {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("fusion_method must be 'rrf' or 'weighted', got %s", c.Search.FusionMethod)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}

	if c.Diversity.Lambda < 0 || c.Diversity.Lambda > 1 {
		return fmt.Errorf("diversity.lambda must be between 0 and 1, got %f", c.Diversity.Lambda)
	}
	if c.Diversity.MaxPerPage <= 0 {
		return fmt.Errorf("diversity.max_per_page must be positive, got %d", c.Diversity.MaxPerPage)
	}

	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttl_hours must be positive, got %d", c.Cache.TTLHours)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}

	if c.Embedder.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embedder.Provider)] {
			return fmt.Errorf("embedder.provider must be 'ollama' or 'static', got %s", c.Embedder.Provider)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
