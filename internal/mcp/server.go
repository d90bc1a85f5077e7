// Package mcp exposes phrase lookup and search as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/api/v1/dto"
)

// Searcher runs semantic and lexical phrase searches.
type Searcher interface {
	Semantic(ctx context.Context, query string, limit int) ([]phrase.Phrase, error)
	Text(ctx context.Context, pattern string, limit int) ([]phrase.Phrase, error)
}

// PhraseLookup fetches a single phrase.
type PhraseLookup interface {
	Get(ctx context.Context, id string) (phrase.Phrase, error)
}

// Server wraps the MCP server with the phrase tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	phrases   PhraseLookup
	logger    *slog.Logger
}

// NewServer creates a new MCP server reporting the given version.
func NewServer(searcher Searcher, phrases PhraseLookup, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		phrases:  phrases,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"semleaf",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Look up phrases the user has recorded. "+
			"Use search_phrases to find phrases by what they mean, "+
			"find_phrases for exact words, and get_phrase for one phrase by id."),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("search_phrases",
		mcp.WithDescription("Find recorded phrases whose meaning is closest to a description, best match first"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the phrase should mean, in natural language"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of phrases to return (default: 20)"),
		),
	), s.handleSearchPhrases)

	mcpServer.AddTool(mcp.NewTool("find_phrases",
		mcp.WithDescription("Find recorded phrases containing a substring in the phrase, source, tags or meanings, case-insensitively"),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Substring to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of phrases to return (default: 20)"),
		),
	), s.handleFindPhrases)

	mcpServer.AddTool(mcp.NewTool("get_phrase",
		mcp.WithDescription("Get a recorded phrase and all of its meanings by id"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The phrase id"),
		),
	), s.handleGetPhrase)
}

func (s *Server) handleSearchPhrases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	phrases, err := s.searcher.Semantic(ctx, query, request.GetInt("limit", 0))
	if err != nil {
		return s.failure("search_phrases", err), nil
	}
	return listResult(phrases)
}

func (s *Server) handleFindPhrases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError("pattern is required"), nil
	}

	phrases, err := s.searcher.Text(ctx, pattern, request.GetInt("limit", 0))
	if err != nil {
		return s.failure("find_phrases", err), nil
	}
	return listResult(phrases)
}

func (s *Server) handleGetPhrase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	p, err := s.phrases.Get(ctx, id)
	if err != nil {
		return s.failure("get_phrase", err), nil
	}

	jsonBytes, err := json.Marshal(dto.FromDomain(p))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func listResult(phrases []phrase.Phrase) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(dto.FromDomainList(phrases))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// failure turns a service error into a tool error. Validation and lookup
// failures are shown as is; storage and provider detail stays in the log.
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, phrase.ErrValidation):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, phrase.ErrNotFound):
		return mcp.NewToolResultError("phrase not found")
	case errors.Is(err, search.ErrEmbedding):
		s.logger.Error("tool failed", slog.String("tool", tool), slog.Any("error", err))
		return mcp.NewToolResultError("embedding service error")
	default:
		s.logger.Error("tool failed", slog.String("tool", tool), slog.Any("error", err))
		return mcp.NewToolResultError("internal error")
	}
}

// MCPServer returns the underlying MCP server for stdio or HTTP serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
