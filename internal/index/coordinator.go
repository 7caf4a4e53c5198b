// Package index builds and maintains the three retrieval indexes from the
// corpus documents: the SQLite chunk store, the BM25 lexical index, and the
// HNSW vector index.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ayodhya-labs/itihasa/internal/chunk"
	"github.com/ayodhya-labs/itihasa/internal/embed"
	apperrors "github.com/ayodhya-labs/itihasa/internal/errors"
	"github.com/ayodhya-labs/itihasa/internal/scanner"
	"github.com/ayodhya-labs/itihasa/internal/store"
)

// docHashStatePrefix keys per-document content hashes in the chunk store,
// used to skip unchanged documents on reindex.
const docHashStatePrefix = "doc_hash:"

// embedBatchSize bounds one embedding request.
const embedBatchSize = 32

// Progress reports indexing progress for one stage of one document.
type Progress func(fileName, stage string, done, total int)

// Config wires the coordinator's dependencies.
type Config struct {
	Chunks   store.ChunkStore
	Lexical  store.LexicalIndex
	Vectors  store.VectorIndex
	Embedder embed.Embedder

	// VectorPath is where the vector index is persisted after indexing.
	VectorPath string

	// Chunker splits documents; nil uses the default prose chunker.
	Chunker *chunk.ProseChunker

	// Progress is called during long stages; nil disables reporting.
	Progress Progress
}

// Coordinator runs corpus indexing end to end.
type Coordinator struct {
	cfg Config
}

// NewCoordinator validates dependencies and creates a coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Chunks == nil || cfg.Lexical == nil || cfg.Vectors == nil {
		return nil, apperrors.ValidationError("index coordinator requires all three stores", nil)
	}
	if cfg.Embedder == nil {
		return nil, apperrors.ValidationError("index coordinator requires an embedder", nil)
	}
	if cfg.Chunker == nil {
		cfg.Chunker = chunk.NewProseChunker()
	}
	if cfg.Progress == nil {
		cfg.Progress = func(string, string, int, int) {}
	}
	return &Coordinator{cfg: cfg}, nil
}

// Result summarizes an indexing run.
type Result struct {
	Documents int
	Skipped   int
	Chunks    int
	Took      time.Duration
}

// IndexCorpus indexes every document in docsDir. Unchanged documents are
// skipped unless force is set. The vector index is persisted once at the
// end, after the embedding model identity is recorded.
func (c *Coordinator) IndexCorpus(ctx context.Context, docsDir string, force bool) (*Result, error) {
	start := time.Now()

	docs, err := scanner.ScanCorpus(docsDir)
	if err != nil {
		return nil, apperrors.StorageError("corpus scan failed", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeIndexNotFound,
			fmt.Sprintf("no documents found in %s", docsDir), nil).
			WithSuggestion("Place .txt or .md corpus files in the documents directory")
	}

	result := &Result{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		indexed, n, err := c.indexDocument(ctx, doc, force)
		if err != nil {
			return nil, err
		}
		if !indexed {
			result.Skipped++
			continue
		}
		result.Documents++
		result.Chunks += n
	}

	if err := c.recordModelIdentity(ctx); err != nil {
		return nil, err
	}
	if err := c.cfg.Vectors.Save(c.cfg.VectorPath); err != nil {
		return nil, apperrors.StorageError("failed to persist vector index", err)
	}

	result.Took = time.Since(start)
	slog.Info("corpus_indexed",
		slog.Int("documents", result.Documents),
		slog.Int("skipped", result.Skipped),
		slog.Int("chunks", result.Chunks),
		slog.Duration("took", result.Took))
	return result, nil
}

// indexDocument indexes one document, replacing any previous version.
// Returns (indexed, chunkCount, err); indexed is false for an unchanged
// document.
func (c *Coordinator) indexDocument(ctx context.Context, doc *scanner.Document, force bool) (bool, int, error) {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return false, 0, apperrors.StorageError("failed to read document", err).
			WithDetail("file", doc.FileName)
	}

	hash := contentHash(content)
	stateKey := docHashStatePrefix + doc.FileName
	if !force {
		prev, err := c.cfg.Chunks.GetState(ctx, stateKey)
		if err == nil && prev == hash {
			slog.Debug("document_unchanged", slog.String("file", doc.FileName))
			return false, 0, nil
		}
	}

	// Replace, not merge: stale chunks from a shrunk document must go.
	if err := c.RemoveDocument(ctx, doc.FileName); err != nil {
		return false, 0, err
	}

	pieces := c.cfg.Chunker.Chunk(content)
	if len(pieces) == 0 {
		slog.Warn("document_empty", slog.String("file", doc.FileName))
		return false, 0, nil
	}

	chunks := make([]*store.Chunk, len(pieces))
	lexDocs := make([]*store.Document, len(pieces))
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		id := store.ChunkID(doc.FileName, p.ChunkIndex)
		chunks[i] = &store.Chunk{
			ID:         id,
			Text:       p.Text,
			FileName:   doc.FileName,
			PageNumber: p.PageNumber,
			ChunkIndex: p.ChunkIndex,
		}
		lexDocs[i] = &store.Document{ID: id, Content: p.Text, FileName: doc.FileName}
		texts[i] = p.Text
	}

	if err := c.cfg.Chunks.SaveChunks(ctx, chunks); err != nil {
		return false, 0, apperrors.StorageError("failed to save chunks", err).
			WithDetail("file", doc.FileName)
	}
	if err := c.cfg.Lexical.Index(ctx, lexDocs); err != nil {
		return false, 0, apperrors.StorageError("failed to index text", err).
			WithDetail("file", doc.FileName)
	}

	if err := c.embedChunks(ctx, doc.FileName, chunks, texts); err != nil {
		return false, 0, err
	}

	if err := c.cfg.Chunks.SetState(ctx, stateKey, hash); err != nil {
		return false, 0, apperrors.StorageError("failed to record document hash", err)
	}

	slog.Info("document_indexed",
		slog.String("file", doc.FileName),
		slog.Int("chunks", len(chunks)))
	return true, len(chunks), nil
}

// embedChunks embeds chunk texts in batches and adds them to the vector
// index, reporting progress per batch.
func (c *Coordinator) embedChunks(ctx context.Context, fileName string, chunks []*store.Chunk, texts []string) error {
	total := len(texts)
	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}

		vectors, err := c.cfg.Embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return apperrors.New(apperrors.ErrCodeEmbedFailed, "failed to embed chunks", err).
				WithDetail("file", fileName)
		}

		vdocs := make([]*store.VectorDoc, 0, end-start)
		for i, vec := range vectors {
			ch := chunks[start+i]
			vdocs = append(vdocs, &store.VectorDoc{ID: ch.ID, FileName: ch.FileName, Vector: vec})
		}
		if err := c.cfg.Vectors.Add(ctx, vdocs); err != nil {
			return apperrors.StorageError("failed to add vectors", err).
				WithDetail("file", fileName)
		}

		c.cfg.Progress(fileName, "embed", end, total)
	}
	return nil
}

// RemoveDocument deletes a document's chunks from all three indexes.
func (c *Coordinator) RemoveDocument(ctx context.Context, fileName string) error {
	chunks, err := c.cfg.Chunks.GetChunksByFile(ctx, fileName)
	if err != nil {
		return apperrors.StorageError("failed to list document chunks", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}

	if err := c.cfg.Lexical.Delete(ctx, ids); err != nil {
		return apperrors.StorageError("failed to delete from lexical index", err)
	}
	if err := c.cfg.Vectors.Delete(ctx, ids); err != nil {
		return apperrors.StorageError("failed to delete from vector index", err)
	}
	if err := c.cfg.Chunks.DeleteChunksByFile(ctx, fileName); err != nil {
		return apperrors.StorageError("failed to delete chunks", err)
	}
	return nil
}

// recordModelIdentity stores the embedding model and dimension so a later
// open can detect an incompatible index.
func (c *Coordinator) recordModelIdentity(ctx context.Context) error {
	dims := strconv.Itoa(c.cfg.Embedder.Dimensions())
	if err := c.cfg.Chunks.SetState(ctx, store.StateKeyIndexDimension, dims); err != nil {
		return apperrors.StorageError("failed to record index dimension", err)
	}
	if err := c.cfg.Chunks.SetState(ctx, store.StateKeyIndexModel, c.cfg.Embedder.ModelName()); err != nil {
		return apperrors.StorageError("failed to record index model", err)
	}
	return nil
}

// VerifyModelIdentity checks a freshly opened index against the configured
// embedder. A mismatch means queries would search in a foreign vector space.
func VerifyModelIdentity(ctx context.Context, chunks store.ChunkStore, embedder embed.Embedder) error {
	dims, err := chunks.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil {
		return apperrors.StorageError("failed to read index state", err)
	}
	if dims == "" {
		return nil // never indexed with a recorded identity
	}

	if want := strconv.Itoa(embedder.Dimensions()); dims != want {
		return apperrors.New(apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %s dimensions, embedder produces %s", dims, want), nil).
			WithSuggestion("Rebuild the indexes with 'itihasa index --force'")
	}
	return nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
