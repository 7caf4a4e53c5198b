// Package scanner discovers corpus documents on disk.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// corpusExtensions are the document types the engine indexes.
var corpusExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// MaxDocumentSize guards against indexing something that is not a book.
const MaxDocumentSize = 64 << 20 // 64 MiB

// Document describes a discovered corpus file.
type Document struct {
	Path     string // absolute path
	FileName string // base name, the identity used across the indexes
	Size     int64
	ModTime  time.Time
}

// ScanCorpus lists the indexable documents directly under dir, sorted by
// file name. Hidden files, subdirectories, unknown extensions, and oversized
// files are skipped.
func ScanCorpus(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !corpusExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if info.Size() > MaxDocumentSize {
			continue
		}

		docs = append(docs, &Document{
			Path:     filepath.Join(dir, entry.Name()),
			FileName: entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].FileName < docs[j].FileName
	})
	return docs, nil
}
