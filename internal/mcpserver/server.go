// Package mcpserver exposes the pure grounding and memory functions as MCP
// tools over stdio, so editors and agents can rank documents, validate
// memory and preview grounded prompts without a running chat service.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/aura/internal/grounding"
	"github.com/flemzord/aura/internal/memory"
)

// MemorySchemaURI is the resource URI of the session memory JSON Schema.
const MemorySchemaURI = "aura://memory/schema"

// Server holds the grounding defaults the tools fall back to.
type Server struct {
	grounding grounding.Config
	logger    *slog.Logger
	mcp       *server.MCPServer
}

// New builds the MCP server with every tool and resource registered.
func New(version string, cfg grounding.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{grounding: cfg.WithDefaults(), logger: logger}
	s.mcp = server.NewMCPServer(
		"aura",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("Document grounding and session memory utilities. "+
			"Use rank_chunks to find relevant passages, build_grounded_prompt to see what the model receives, "+
			"and validate_memory to check a memory document against "+MemorySchemaURI+"."),
	)

	s.mcp.AddTool(rankChunksTool(), s.handleRankChunks)
	s.mcp.AddTool(validateMemoryTool(), s.handleValidateMemory)
	s.mcp.AddTool(buildPromptTool(), s.handleBuildPrompt)
	s.mcp.AddResource(
		mcp.NewResource(MemorySchemaURI, "session memory schema",
			mcp.WithResourceDescription("JSON Schema every compacted session memory must satisfy"),
			mcp.WithMIMEType("application/schema+json"),
		),
		handleMemorySchema,
	)
	return s
}

// MCP returns the underlying server, for transports other than stdio.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves JSON-RPC on in and out until ctx is cancelled or in
// reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{s.logger}, "", 0))
	s.logger.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

// slogWriter forwards the stdio server's log.Logger output to slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Error("mcp stdio", "error", string(p))
	return len(p), nil
}

func handleMemorySchema(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MemorySchemaURI,
			MIMEType: "application/schema+json",
			Text:     string(memory.Schema()),
		},
	}, nil
}

// jsonResult encodes v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
