package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

const serverName = "searchbridge"

// Server exposes the request pipeline's search and fetch operations over
// the Model Context Protocol.
type Server struct {
	client  *pipeline.Client
	version string
	log     zerolog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the default no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// NewServer wraps client in an MCP tool server.
func NewServer(client *pipeline.Client, version string, opts ...Option) *Server {
	if strings.TrimSpace(version) == "" {
		version = "dev"
	}
	s := &Server{
		client:  client,
		version: version,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) mcpServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: s.version,
	}, nil)
	mcp.AddTool(server, SearchTool(), s.handleSearch)
	mcp.AddTool(server, FetchTool(), s.handleFetch)
	return server
}

// Run serves the tools over stdio until ctx is canceled or the peer
// disconnects. Log output goes to stderr so stdout stays protocol-clean.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("server", serverName).Str("version", s.version).Msg("Serving tools over stdio")
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
