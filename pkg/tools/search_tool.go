package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

// SearchTool returns the web_search tool definition.
func SearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        SearchToolName,
		Description: SearchToolDescription,
		InputSchema: SearchToolSchema(),
	}
}

// SearchToolSchema returns the JSON schema for the web_search tool.
func SearchToolSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("How many results to return, 1-%d (default %d)", pipeline.MaxSearchCount, pipeline.DefaultSearchCount),
			},
			"time_range": map[string]any{
				"type":        "string",
				"description": "Optional recency filter, e.g. 'past week' or 'past year'",
			},
			"structured": map[string]any{
				"type":        "boolean",
				"description": "Return results as a JSON object instead of prose",
			},
		},
		"required": []string{"query"},
	}
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	resp, err := s.client.Search(ctx, pipeline.SearchRequest{
		Query:      args.Query,
		Count:      args.Count,
		TimeRange:  args.TimeRange,
		Structured: args.Structured,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tool", SearchToolName).Msg("Tool call failed")
		return errorResult(err), nil, nil
	}
	if !args.Structured {
		return textResult(resp.Text), nil, nil
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return errorResult(fmt.Errorf("encode search result: %w", err)), nil, nil
	}
	return textResult(string(encoded)), nil, nil
}
