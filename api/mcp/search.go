package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reqvibe/reqvibe/pkg/ltm"
)

var (
	searchToolName    = "requirement_search"
	searchDescription = "Search stored requirements by keyword or meaning. Returns the most relevant requirements including their Volere template fields."

	getToolName    = "requirement_get"
	getDescription = "Fetch a single requirement by its identifier (e.g. REQ-012)."
)

// SearchInput represents the input arguments for the requirement_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant requirements"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchHit is a single requirement match.
type SearchHit struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Project string            `json:"project,omitempty"`
	Volere  map[string]string `json:"volere,omitempty"`
	Score   float32           `json:"score,omitempty"`
}

// SearchOutput represents the output of the requirement_search tool.
type SearchOutput struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// GetInput represents the input arguments for the requirement_get tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the requirement identifier"`
}

// GetOutput is the requirement_get result.
type GetOutput struct {
	Requirement SearchHit `json:"requirement"`
}

// handleSearch processes a requirement search request. Semantic search
// is used when an embedder is configured, keyword search otherwise.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	logger.Debug("MCP requirement search", "query", input.Query, "topK", topK)

	results, err := s.search(ctx, input.Query, topK)
	if err != nil {
		logger.Error("requirement search failed", "error", err)
		return toolError(fmt.Sprintf("Search failed: %v", err)), SearchOutput{}, nil
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:      r.ID,
			Text:    r.Text,
			Project: r.Project,
			Volere:  r.Volere,
			Score:   r.Score,
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: hits,
		Count:   len(hits),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func (s *Server) search(ctx context.Context, query string, topK int) ([]ltm.Result, error) {
	if s.config.Embedder == nil {
		return s.config.Driver.Search(ctx, query, topK)
	}

	embedding, err := s.config.Embedder.Embed(ctx, query)
	if err != nil {
		// Degrade to keyword search rather than failing the tool call.
		s.config.Logger.Warn("embedding query failed, falling back to keyword search", "error", err)
		return s.config.Driver.Search(ctx, query, topK)
	}
	return s.config.Driver.SearchByVector(ctx, embedding, topK)
}

// handleGet fetches one requirement by ID.
func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, GetOutput, error) {
	rec, err := s.config.Driver.Get(ctx, input.ID)
	if err != nil {
		var notFound ltm.ErrNotFound
		if errors.As(err, &notFound) {
			return toolError(fmt.Sprintf("Requirement %s not found", input.ID)), GetOutput{}, nil
		}
		s.config.Logger.Error("requirement lookup failed", "id", input.ID, "error", err)
		return toolError(fmt.Sprintf("Lookup failed: %v", err)), GetOutput{}, nil
	}

	output := GetOutput{Requirement: SearchHit{
		ID:      rec.ID,
		Text:    rec.Text,
		Project: rec.Project,
		Volere:  rec.Volere,
	}}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize result: %v", err)), GetOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
