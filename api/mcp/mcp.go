// Package mcp provides an MCP (Model Context Protocol) server exposing the
// griot persona operations as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
	"github.com/davidhonghikim/griot-sub000/pkg/utils"
)

// Service is the persona surface the tools call. *pipeline.Orchestrator
// implements it.
type Service interface {
	Search(ctx context.Context, req retrieval.Request) *retrieval.Response
	SelectBestPersona(ctx context.Context, query string, opts retrieval.SelectOptions) *retrieval.SelectResponse
	GetPersonaEnsemble(ctx context.Context, query string, size int, opts retrieval.EnsembleOptions) *retrieval.EnsembleResponse
	GetPersonaRecommendations(ctx context.Context, query, userID string, opts retrieval.RecommendOptions) *retrieval.RecommendationResponse
	GetStats(ctx context.Context) *retrieval.Stats
	Query(ctx context.Context, req generation.Request) *generation.Response
}

type Config struct {
	Service Service

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the persona tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "griot",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Service == nil {
			return nil, errors.New("persona service is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        selectToolName,
			Description: selectDescription,
		}, s.handleSelect)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        ensembleToolName,
			Description: ensembleDescription,
		}, s.handleEnsemble)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        recommendToolName,
			Description: recommendDescription,
		}, s.handleRecommend)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        statsToolName,
			Description: statsDescription,
		}, s.handleStats)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
