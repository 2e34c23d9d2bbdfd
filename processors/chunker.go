package processors

import (
	"fmt"
	"strings"

	"videoTranscriptQA/core"
)

// Chunker splits transcript text into ordered, overlapping chunks for
// retrieval. Splits prefer paragraph boundaries, then sentence ends,
// then whitespace, and only hard-cut when nothing better is in reach.
type Chunker struct {
	MaxSize int // maximum chunk length in runes
	Overlap int // runes of shared context between adjacent chunks
}

// NewChunker validates the chunking parameters once, at configuration
// time. An overlap at or above the chunk size cannot make progress.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, maxSize)
	}
	return &Chunker{MaxSize: maxSize, Overlap: overlap}, nil
}

// Split chunks a transcript into exact substrings of its text. Every
// chunk satisfies text[StartOffset : StartOffset+len] == Chunk.Text
// (offsets in runes), chunks appear in transcript order, adjacent
// chunks overlap by exactly Overlap runes unless a snapped boundary
// shortens the tail, and no cut lands mid-codepoint.
func (c *Chunker) Split(t core.Transcript) []core.Chunk {
	runes := []rune(t.Text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.MaxSize {
		return []core.Chunk{{Text: t.Text, StartOffset: 0, SequenceIndex: 0}}
	}

	// How far back from the tentative cut we look for a natural
	// boundary. Kept small so the effective stride stays predictable.
	window := c.MaxSize / 20
	if maxWindow := c.MaxSize - c.Overlap - 1; window > maxWindow {
		window = maxWindow
	}

	var chunks []core.Chunk
	start := 0
	for {
		end := start + c.MaxSize
		if end >= len(runes) {
			chunks = append(chunks, core.Chunk{
				Text:          string(runes[start:]),
				StartOffset:   start,
				SequenceIndex: len(chunks),
			})
			return chunks
		}

		end = snapToBoundary(runes, start, end, window)
		chunks = append(chunks, core.Chunk{
			Text:          string(runes[start:end]),
			StartOffset:   start,
			SequenceIndex: len(chunks),
		})

		next := end - c.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
}

// snapToBoundary moves the cut point at runes[end] backward to the most
// natural boundary within the window, preferring paragraph breaks, then
// sentence ends, then any whitespace. The cut lands just after the
// separator so separators stay attached to the preceding chunk.
func snapToBoundary(runes []rune, start, end, window int) int {
	lo := end - window
	if lo < start+1 {
		lo = start + 1
	}

	// Paragraph break.
	if i := lastIndexIn(runes, lo, end, "\n\n"); i >= 0 {
		return i + 2
	}
	// Sentence end followed by whitespace, or a line break.
	for i := end - 1; i > lo; i-- {
		if isSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
			return i + 1
		}
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// Any whitespace.
	for i := end - 1; i >= lo; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	// Hard cut.
	return end
}

// lastIndexIn finds the last occurrence of sep whose end fits within
// runes[lo:end], returning the index of its first rune or -1.
func lastIndexIn(runes []rune, lo, end int, sep string) int {
	sepRunes := []rune(sep)
	for i := end - len(sepRunes); i >= lo; i-- {
		if string(runes[i:i+len(sepRunes)]) == sep {
			return i
		}
	}
	return -1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return strings.ContainsRune(".!?", r)
}
