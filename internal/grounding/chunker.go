// Package grounding implements lexical document grounding: splitting
// extracted text into overlapping chunks, ranking them against the user
// question with BM25, and composing the untrusted-content prompt that
// replaces the user's message.
//
// Every function in this package is pure and safe for concurrent use.
package grounding

import (
	"iter"
	"strings"
)

// Chunk is one window of a document. Index is contiguous from 0 across the
// chunks emitted for a single document.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Chunks returns a restartable sequence of overlapping windows over text.
//
// size is clamped to at least 1 and overlap to [0, size-1]. Windows are
// measured in characters, advance by size-overlap, and are trimmed of
// surrounding whitespace; windows that trim to nothing are skipped without
// consuming an index. The sequence ends once a window reaches the end of
// text. Blank text yields nothing.
func Chunks(text string, size, overlap int) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		width := max(1, size)
		stride := width - min(max(0, overlap), width-1)

		runes := []rune(text)
		index := 0
		for start := 0; start < len(runes); start += stride {
			end := min(len(runes), start+width)
			piece := strings.TrimSpace(string(runes[start:end]))
			if piece != "" {
				if !yield(Chunk{Index: index, Text: piece}) {
					return
				}
				index++
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// ChunkText collects Chunks into a slice.
func ChunkText(text string, size, overlap int) []Chunk {
	var out []Chunk
	for c := range Chunks(text, size, overlap) {
		out = append(out, c)
	}
	return out
}
