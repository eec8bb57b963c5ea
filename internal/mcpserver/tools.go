package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flemzord/aura/internal/grounding"
	"github.com/flemzord/aura/internal/memory"
)

func rankChunksTool() mcp.Tool {
	return mcp.NewTool("rank_chunks",
		mcp.WithDescription("Split a document into overlapping chunks and return the ones most relevant to a query, best first."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question or keywords to rank against")),
		mcp.WithNumber("top_k", mcp.Description("Maximum chunks to return")),
		mcp.WithNumber("min_score", mcp.Description("Drop chunks scoring below this value")),
		mcp.WithNumber("chunk_size", mcp.Description("Chunk size in characters")),
		mcp.WithNumber("chunk_overlap", mcp.Description("Overlap between consecutive chunks in characters")),
	)
}

func validateMemoryTool() mcp.Tool {
	return mcp.NewTool("validate_memory",
		mcp.WithDescription("Check a session memory JSON document against the memory schema."),
		mcp.WithString("json", mcp.Required(), mcp.Description("Memory document")),
	)
}

func buildPromptTool() mcp.Tool {
	return mcp.NewTool("build_grounded_prompt",
		mcp.WithDescription("Build the prompt the model receives for a message grounded on a document."),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Extracted document text")),
	)
}

// rankResult is the rank_chunks payload.
type rankResult struct {
	TotalChunks int                     `json:"total_chunks"`
	Chunks      []grounding.ScoredChunk `json:"chunks"`
}

func (s *Server) handleRankChunks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg := s.grounding
	cfg.TopK = req.GetInt("top_k", cfg.TopK)
	cfg.MinChunkScore = req.GetFloat("min_score", cfg.MinChunkScore)
	cfg.ChunkSizeChars = req.GetInt("chunk_size", cfg.ChunkSizeChars)
	cfg.ChunkOverlapChars = req.GetInt("chunk_overlap", cfg.ChunkOverlapChars)
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	chunks := grounding.ChunkText(text, cfg.ChunkSizeChars, cfg.ChunkOverlapChars)
	top := grounding.RetrieveTopK(query, chunks, cfg.TopK, cfg.MinChunkScore)
	if top == nil {
		top = []grounding.ScoredChunk{}
	}
	s.logger.Debug("rank_chunks", "chunks", len(chunks), "selected", len(top))
	return jsonResult(rankResult{TotalChunks: len(chunks), Chunks: top})
}

// validateResult is the validate_memory payload.
type validateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleValidateMemory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := memory.Check(raw); err != nil {
		return jsonResult(validateResult{Error: err.Error()})
	}
	return jsonResult(validateResult{Valid: true})
}

// promptResult is the build_grounded_prompt payload.
type promptResult struct {
	Prompt       string                  `json:"prompt"`
	DirectInject bool                    `json:"direct_inject"`
	TotalChunks  int                     `json:"total_chunks"`
	Selected     []grounding.ScoredChunk `json:"selected,omitempty"`
}

func (s *Server) handleBuildPrompt(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := grounding.Ground(s.grounding, message, text)
	return jsonResult(promptResult{
		Prompt:       res.Prompt,
		DirectInject: res.DirectInject,
		TotalChunks:  res.TotalChunks,
		Selected:     res.Selected,
	})
}
