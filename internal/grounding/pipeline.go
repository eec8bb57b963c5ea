package grounding

import (
	"errors"
	"fmt"
)

// Config holds the grounding knobs read from the "grounding" config section.
type Config struct {
	// DirectInjectMaxChars is the largest extracted text, in characters,
	// that is embedded whole instead of going through retrieval.
	DirectInjectMaxChars int `yaml:"direct_inject_max_chars"`

	ChunkSizeChars    int     `yaml:"chunk_size_chars"`
	ChunkOverlapChars int     `yaml:"chunk_overlap_chars"`
	TopK              int     `yaml:"top_k"`
	MinChunkScore     float64 `yaml:"min_chunk_score"`
}

// WithDefaults returns a copy with zero values replaced by defaults.
// MinChunkScore has no default beyond 0.
func (c Config) WithDefaults() Config {
	if c.DirectInjectMaxChars <= 0 {
		c.DirectInjectMaxChars = 12000
	}
	if c.ChunkSizeChars <= 0 {
		c.ChunkSizeChars = 1200
	}
	if c.ChunkOverlapChars <= 0 {
		c.ChunkOverlapChars = 120
	}
	if c.TopK <= 0 {
		c.TopK = 6
	}
	return c
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkOverlapChars >= c.ChunkSizeChars {
		errs = append(errs, fmt.Errorf("grounding: chunk_overlap_chars (%d) must be smaller than chunk_size_chars (%d)",
			c.ChunkOverlapChars, c.ChunkSizeChars))
	}
	if c.MinChunkScore < 0 {
		errs = append(errs, fmt.Errorf("grounding: min_chunk_score must not be negative, got %v", c.MinChunkScore))
	}
	return errors.Join(errs...)
}

// Result is the outcome of grounding one message against one document.
type Result struct {
	Prompt       string
	DirectInject bool
	TotalChunks  int
	Selected     []ScoredChunk
}

// Ground decides between direct injection and retrieval, then composes
// the grounded prompt. Text at or below DirectInjectMaxChars characters
// bypasses chunking and ranking entirely.
func Ground(cfg Config, userMessage, extracted string) Result {
	res := Result{
		DirectInject: len([]rune(extracted)) <= cfg.DirectInjectMaxChars,
	}
	if !res.DirectInject {
		chunks := ChunkText(extracted, cfg.ChunkSizeChars, cfg.ChunkOverlapChars)
		res.TotalChunks = len(chunks)
		res.Selected = RetrieveTopK(userMessage, chunks, cfg.TopK, cfg.MinChunkScore)
	}
	res.Prompt = BuildGroundedPrompt(userMessage, extracted, res.Selected, res.DirectInject)
	return res
}
