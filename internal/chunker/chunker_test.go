package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := New(Config{})
	chunks := s.Split("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplit_EmptyText(t *testing.T) {
	s := New(Config{})
	assert.Empty(t, s.Split(""))
}

func TestSplit_UnbrokenTextUsesHardCuts(t *testing.T) {
	// 5000 bytes with no natural boundaries: 2000/200 yields exactly
	// three chunks at [0,2000), [1800,3800), [3600,5000).
	s := New(Config{ChunkSize: 2000, ChunkOverlap: 200})
	text := strings.Repeat("x", 5000)

	chunks := s.Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2000)
	assert.Len(t, chunks[1], 2000)
	assert.Len(t, chunks[2], 1400)
}

func TestSplit_HardCutKeepsRunesIntact(t *testing.T) {
	// Three-byte runes with no natural boundaries, so every cut is a hard
	// cut that must back off to a rune start.
	s := New(Config{ChunkSize: 2000, ChunkOverlap: 200})
	text := strings.Repeat("क", 2000)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d is not valid UTF-8", i)
		assert.LessOrEqual(t, len(c), 2000, "chunk %d too long", i)
	}
	// No content lost: the final chunk ends where the input does.
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(text, last))
	assert.True(t, strings.HasPrefix(text, chunks[0]))
}

func TestSplit_OverlapIsSharedBetweenNeighbors(t *testing.T) {
	s := New(Config{ChunkSize: 100, ChunkOverlap: 20})
	// Distinct bytes so shared regions are unambiguous.
	var b strings.Builder
	for i := 0; i < 350; i++ {
		b.WriteByte(byte('A' + i%26))
	}
	text := b.String()

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		prev, next := chunks[i], chunks[i+1]
		overlap := prev[len(prev)-20:]
		assert.Equal(t, overlap, next[:20], "chunk %d suffix must prefix chunk %d", i, i+1)
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	s := New(Config{ChunkSize: 50, ChunkOverlap: 0})
	text := strings.Repeat("a", 20) + "\n\n" + strings.Repeat("b", 40)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"),
		"first chunk should end at the paragraph break, got %q", chunks[0])
}

func TestSplit_PrefersSentenceOverWord(t *testing.T) {
	s := New(Config{ChunkSize: 50, ChunkOverlap: 0})
	text := "First sentence here. Second half of the text continues for a while"

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], ". "),
		"first chunk should end at the sentence boundary, got %q", chunks[0])
}

// TestSpans_Invariants checks the structural properties every split must
// hold: full coverage with no gaps, bounded chunk length, strictly
// increasing starts.
func TestSpans_Invariants(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 5000),
		strings.Repeat("word boundary test ", 500),
		strings.Repeat("Sentences end here. ", 300),
		strings.Repeat("para one\n\npara two\n\n", 200),
		"tiny",
		strings.Repeat("\n", 100) + strings.Repeat("x", 4000),
	}

	s := New(Config{ChunkSize: 2000, ChunkOverlap: 200})
	for _, text := range inputs {
		spans := s.spans(text)
		require.NotEmpty(t, spans)

		assert.Equal(t, 0, spans[0].start)
		assert.Equal(t, len(text), spans[len(spans)-1].end)

		for i, sp := range spans {
			assert.LessOrEqual(t, sp.end-sp.start, 2000, "span %d too long", i)
			assert.Less(t, sp.start, sp.end, "span %d empty", i)
			if i > 0 {
				assert.LessOrEqual(t, sp.start, spans[i-1].end, "gap before span %d", i)
				assert.Greater(t, sp.start, spans[i-1].start, "no forward progress at span %d", i)
			}
		}
	}
}

func TestSplitPages_PreservesOrderAndAttribution(t *testing.T) {
	s := New(Config{ChunkSize: 100, ChunkOverlap: 10})
	pages := []Page{
		{Text: strings.Repeat("a", 150), Number: 1},
		{Text: "", Number: 2},
		{Text: strings.Repeat("b", 50), Number: 3},
	}

	chunks := s.SplitPages(pages)
	require.GreaterOrEqual(t, len(chunks), 3)

	// Page 1 chunks come first, then page 3; page 2 is empty.
	assert.Equal(t, 1, chunks[0].PageNumber)
	last := chunks[len(chunks)-1]
	assert.Equal(t, 3, last.PageNumber)
	assert.Equal(t, strings.Repeat("b", 50), last.Text)

	for _, c := range chunks {
		assert.NotEqual(t, 2, c.PageNumber, "empty page must contribute no chunks")
	}
}

func TestApplyDefaults_ClampsOverlap(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 100}
	cfg.ApplyDefaults()
	assert.Equal(t, 25, cfg.ChunkOverlap)

	cfg = Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.ChunkOverlap)
}
