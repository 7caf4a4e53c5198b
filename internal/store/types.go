// Package store provides the persistence layer: the BM25 lexical index
// (bleve), the HNSW vector index, and the SQLite chunk store.
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk represents a retrievable unit of corpus text.
type Chunk struct {
	ID         string // SHA256(file_name + chunk_index)
	Text       string // Chunk text
	FileName   string // Source document file name
	PageNumber int    // 1-indexed page in the source document
	ChunkIndex int    // Position of the chunk within the document
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentInfo describes an indexed source document.
type DocumentInfo struct {
	FileName   string
	PageCount  int
	ChunkCount int
	IndexedAt  time.Time
}

// ChunkStore persists chunk text and metadata in SQLite.
type ChunkStore interface {
	// SaveChunks inserts or replaces chunks.
	SaveChunks(ctx context.Context, chunks []*Chunk) error

	// GetChunk fetches a single chunk by ID.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunks fetches chunks by ID in one round trip, preserving the
	// order of ids. Missing IDs are skipped.
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)

	// GetChunksByFile fetches all chunks for a document, ordered by index.
	GetChunksByFile(ctx context.Context, fileName string) ([]*Chunk, error)

	// DeleteChunksByFile removes a document's chunks.
	DeleteChunksByFile(ctx context.Context, fileName string) error

	// ListDocuments returns per-document statistics.
	ListDocuments(ctx context.Context) ([]*DocumentInfo, error)

	// Count returns the total chunk count.
	Count(ctx context.Context) (int, error)

	// State operations (key-value store for runtime state).
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// State keys for the chunk store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
)

// Document represents a document to be indexed in the lexical index.
type Document struct {
	ID       string // Chunk ID
	Content  string // Text content
	FileName string // Source file, stored for filtered search
}

// LexicalResult represents a single BM25 search result.
type LexicalResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the lexical index.
type IndexStats struct {
	DocumentCount int
}

// LexicalIndex provides keyword search using BM25 scoring.
type LexicalIndex interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	// fileFilter restricts results to a single source document ("" = all).
	Search(ctx context.Context, query string, limit int, fileFilter string) ([]*LexicalResult, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// Available reports whether the index is open and searchable.
	Available() bool

	// Stats returns index statistics.
	Stats() *IndexStats

	Close() error
}

// LexicalConfig configures the lexical index.
type LexicalConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultLexicalConfig returns the default lexical index configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		K1:             1.2,
		B:              0.75,
		MinTokenLength: 2,
	}
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorConfig configures the vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 32).
	M int

	// EfConstruction is HNSW build-time search width (default: 128).
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector index.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions:     dimensions,
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorDoc pairs a chunk embedding with its identity.
type VectorDoc struct {
	ID       string
	FileName string
	Vector   []float32
}

// VectorIndex provides semantic search over chunk embeddings.
type VectorIndex interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, docs []*VectorDoc) error

	// Search finds k nearest neighbors to the query vector.
	// fileFilter restricts results to a single source document ("" = all).
	Search(ctx context.Context, query []float32, k int, fileFilter string) ([]*VectorResult, error)

	// Vector returns the stored embedding for an ID, if present.
	Vector(id string) ([]float32, bool)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index with 'itihasa index --force')", e.Expected, e.Got)
}
