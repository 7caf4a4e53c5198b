// Package chunk splits corpus documents into paginated, overlapping
// retrieval chunks.
package chunk

import (
	"strings"
)

// Chunk size defaults. Token counts are approximated at four characters
// per token, which is close enough for English prose.
const (
	DefaultMaxChunkTokens = 512 // Optimal for 85-90% recall
	DefaultOverlapTokens  = 64  // ~12.5% overlap
	MinChunkTokens        = 25  // Trailing fragments below this merge backward
	CharsPerToken         = 4

	// DefaultLinesPerPage synthesizes page numbers for plain text files
	// that carry no form feeds of their own.
	DefaultLinesPerPage = 40
)

// Chunk is a retrievable unit of document text.
type Chunk struct {
	Text       string
	PageNumber int // 1-indexed
	ChunkIndex int // position within the document
}

// Options configures the prose chunker.
type Options struct {
	MaxChunkTokens int
	OverlapTokens  int
	LinesPerPage   int
}

// ProseChunker splits documents into chunks along paragraph boundaries,
// preserving page provenance. Pages come from form feeds when the document
// has them, otherwise from a fixed line count.
type ProseChunker struct {
	opts Options
}

// NewProseChunker creates a chunker with default options.
func NewProseChunker() *ProseChunker {
	return NewProseChunkerWithOptions(Options{})
}

// NewProseChunkerWithOptions creates a chunker with custom options.
func NewProseChunkerWithOptions(opts Options) *ProseChunker {
	if opts.MaxChunkTokens <= 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens <= 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	if opts.LinesPerPage <= 0 {
		opts.LinesPerPage = DefaultLinesPerPage
	}
	return &ProseChunker{opts: opts}
}

// Chunk splits a document into paginated chunks. Empty and whitespace-only
// content yields no chunks.
func (c *ProseChunker) Chunk(content []byte) []*Chunk {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []*Chunk
	index := 0
	for pageNum, page := range c.paginate(text) {
		for _, part := range c.splitPage(page) {
			chunks = append(chunks, &Chunk{
				Text:       part,
				PageNumber: pageNum + 1,
				ChunkIndex: index,
			})
			index++
		}
	}
	return chunks
}

// paginate splits on form feeds when present, else on a fixed line count.
// Blank pages are dropped but still advance the page number, matching the
// printed sources.
func (c *ProseChunker) paginate(text string) []string {
	if strings.ContainsRune(text, '\f') {
		return strings.Split(text, "\f")
	}

	lines := strings.Split(text, "\n")
	var pages []string
	for start := 0; start < len(lines); start += c.opts.LinesPerPage {
		end := start + c.opts.LinesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, strings.Join(lines[start:end], "\n"))
	}
	return pages
}

// splitPage packs paragraphs into chunks up to the token budget, carrying
// an overlap tail between consecutive chunks so sentences cut at a chunk
// boundary stay retrievable from both sides.
func (c *ProseChunker) splitPage(page string) []string {
	maxChars := c.opts.MaxChunkTokens * CharsPerToken
	overlapChars := c.opts.OverlapTokens * CharsPerToken
	// Overlap at or past half the budget would snowball chunk sizes.
	if overlapChars > maxChars/2 {
		overlapChars = maxChars / 2
	}
	minChars := MinChunkTokens * CharsPerToken

	var parts []string
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" {
			return
		}
		// A trailing fragment reads better attached to its predecessor.
		if len(text) < minChars && len(parts) > 0 {
			parts[len(parts)-1] += "\n\n" + text
			return
		}
		parts = append(parts, text)
	}

	for _, para := range splitParagraphs(page) {
		for _, piece := range splitOversized(para, maxChars) {
			if current.Len() > 0 && current.Len()+len(piece) > maxChars {
				flush()
				if tail := overlapTail(parts, overlapChars); tail != "" {
					current.WriteString(tail)
				}
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return parts
}

// splitParagraphs breaks a page on blank lines.
func splitParagraphs(page string) []string {
	var paras []string
	for _, p := range strings.Split(page, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// splitOversized cuts a paragraph that alone exceeds the budget at sentence
// ends, falling back to a hard cut for pathological run-on text.
func splitOversized(para string, maxChars int) []string {
	if len(para) <= maxChars {
		return []string{para}
	}

	var pieces []string
	remaining := para
	for len(remaining) > maxChars {
		cut := lastSentenceEnd(remaining[:maxChars])
		if cut <= 0 {
			cut = maxChars
		}
		pieces = append(pieces, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if remaining != "" {
		pieces = append(pieces, remaining)
	}
	return pieces
}

// lastSentenceEnd returns the index just past the last sentence terminator,
// or -1 when the text has none.
func lastSentenceEnd(s string) int {
	best := -1
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' || s[i+1] == '\n' {
				best = i + 1
			}
		}
	}
	return best
}

// overlapTail returns the last overlapChars of the most recent chunk,
// starting at a word boundary.
func overlapTail(parts []string, overlapChars int) string {
	if len(parts) == 0 || overlapChars <= 0 {
		return ""
	}
	prev := parts[len(parts)-1]
	if len(prev) <= overlapChars {
		return prev
	}
	tail := prev[len(prev)-overlapChars:]
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}
