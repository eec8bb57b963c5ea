package grounding

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"
)

// BM25 parameters.
const (
	paramK1 = 1.5
	paramB  = 0.75
)

// tokenPattern matches runs of ASCII letters and digits after lower-casing.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// ScoredChunk is a chunk together with its relevance to one query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Tokenize lower-cases text and splits it on every run of characters
// outside [a-z0-9]. It is shared by queries and chunks.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// RetrieveTopK ranks chunks against query with BM25 and returns at most k
// of them, highest score first. Chunks scoring below minScore are dropped
// before truncation; equal scores keep their original relative order.
//
// Term and document frequencies are computed from scratch on every call.
// A blank query, no chunks, or k <= 0 yields nil.
func RetrieveTopK(query string, chunks []Chunk, k int, minScore float64) []ScoredChunk {
	if strings.TrimSpace(query) == "" || len(chunks) == 0 || k <= 0 {
		return nil
	}

	termFrequencies := make([]map[string]int, len(chunks))
	lengths := make([]int, len(chunks))
	documentFrequency := make(map[string]int)
	totalTokens := 0

	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		lengths[i] = len(tokens)
		totalTokens += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			if tf[token] == 0 {
				documentFrequency[token]++
			}
			tf[token]++
		}
		termFrequencies[i] = tf
	}

	averageLength := float64(totalTokens) / float64(len(chunks))
	queryTokens := Tokenize(query)

	scored := make([]ScoredChunk, 0, len(chunks))
	for i, chunk := range chunks {
		score := bm25(queryTokens, termFrequencies[i], documentFrequency, lengths[i], averageLength, len(chunks))
		if score >= minScore {
			scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	slices.SortStableFunc(scored, func(a, b ScoredChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// bm25 scores one chunk. Query tokens absent from the chunk contribute
// nothing, and a chunk without tokens scores 0. A repeated query token is
// counted once per occurrence.
func bm25(queryTokens []string, tf, df map[string]int, length int, averageLength float64, count int) float64 {
	if len(queryTokens) == 0 || length == 0 || count == 0 {
		return 0
	}

	n := float64(count)
	var score float64
	for _, token := range queryTokens {
		frequency := float64(tf[token])
		if frequency == 0 {
			continue
		}

		documents := float64(df[token])
		idf := math.Log(1 + (n-documents+0.5)/(documents+0.5))

		numerator := frequency * (paramK1 + 1)
		denominator := frequency + paramK1*(1-paramB+paramB*(float64(length)/averageLength))
		score += idf * numerator / denominator
	}
	return score
}
