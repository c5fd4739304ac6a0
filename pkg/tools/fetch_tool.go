package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

// FetchTool returns the fetch_url tool definition.
func FetchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        FetchToolName,
		Description: FetchToolDescription,
		InputSchema: FetchToolSchema(),
	}
}

// FetchToolSchema returns the JSON schema for the fetch_url tool.
func FetchToolSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The http(s) URL of the page to fetch",
			},
			"prompt": map[string]any{
				"type":        "string",
				"description": "Optional. What to extract from the page (defaults to a summary)",
			},
		},
		"required": []string{"url"},
	}
}

func (s *Server) handleFetch(ctx context.Context, req *mcp.CallToolRequest, args FetchArgs) (*mcp.CallToolResult, any, error) {
	resp, err := s.client.Fetch(ctx, pipeline.FetchRequest{
		URL:    args.URL,
		Prompt: args.Prompt,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tool", FetchToolName).Msg("Tool call failed")
		return errorResult(err), nil, nil
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return errorResult(fmt.Errorf("encode fetch result: %w", err)), nil, nil
	}
	return textResult(string(encoded)), nil, nil
}
