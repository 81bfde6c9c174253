// Package chunker splits document text into bounded, overlapping segments.
//
// Chunks are the unit of embedding: each one is at most ChunkSize bytes and
// shares ChunkOverlap bytes with its successor so that context survives the
// boundary. Splitting prefers natural boundaries (paragraph, line, sentence,
// word) before falling back to a hard cut, and never drops content.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Defaults match the index this pipeline writes to; changing them changes
// chunk ids for re-ingested documents.
const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200
)

// separators are tried in order when looking for a cut point.
var separators = []string{"\n\n", "\n", ". ", " "}

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// ChunkOverlap is the number of bytes shared between consecutive chunks.
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields and clamps an overlap
// that would prevent forward progress.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 4
	}
}

// Splitter splits text into overlapping chunks.
type Splitter struct {
	config Config
}

// New creates a Splitter with the given configuration.
func New(config Config) *Splitter {
	config.ApplyDefaults()
	return &Splitter{config: config}
}

// Chunk is one bounded segment of page text.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// PageNumber is the 1-based source page, or 0 when unknown.
	PageNumber int
}

// Split splits text into ordered chunks of at most ChunkSize bytes each.
//
// The concatenation of the returned chunks, minus the overlap shared between
// consecutive pairs, reconstructs the input exactly.
func (s *Splitter) Split(text string) []string {
	spans := s.spans(text)
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = text[sp.start:sp.end]
	}
	return chunks
}

// SplitPages splits each page independently, preserving page order and
// attribution. Chunk boundaries never cross pages. Pages that are empty
// after splitting contribute no chunks.
func (s *Splitter) SplitPages(pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range s.Split(page.Text) {
			chunks = append(chunks, Chunk{Text: text, PageNumber: page.Number})
		}
	}
	return chunks
}

// Page is an ordered block of page text fed into SplitPages.
// It mirrors the loader's page record without importing it.
type Page struct {
	Text   string
	Number int
}

// span is a half-open [start, end) byte range into the input text.
type span struct {
	start, end int
}

// spans computes the chunk ranges for text.
//
// Invariants:
//   - the first span starts at 0, the last ends at len(text)
//   - span i+1 starts at or before span i's end (no gaps)
//   - every span is at most ChunkSize long
//   - start positions strictly increase (termination)
func (s *Splitter) spans(text string) []span {
	if text == "" {
		return nil
	}
	n := len(text)
	if n <= s.config.ChunkSize {
		return []span{{0, n}}
	}

	var out []span
	start := 0
	for start < n {
		end := start + s.config.ChunkSize
		if end >= n {
			out = append(out, span{start, n})
			break
		}

		cut := s.findCut(text, start, end)
		out = append(out, span{start, cut})

		next := cut - s.config.ChunkOverlap
		if next > 0 {
			next = runeStart(text, next)
		}
		if next <= start {
			// Overlap would stall on a short chunk; advance without it.
			next = cut
		}
		start = next
	}
	return out
}

// findCut returns the cut position for a chunk starting at start whose hard
// limit is end. It picks the last natural boundary inside the window,
// trying separators from coarsest to finest, and keeps the separator in the
// left chunk so that no bytes are lost. Falls back to a hard cut at the
// nearest rune boundary at or before end, so a cut never splits a multibyte
// sequence.
func (s *Splitter) findCut(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	if cut := runeStart(text, end); cut > start {
		return cut
	}
	return end
}

// runeStart backs i off to the start of the rune containing text[i].
func runeStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
