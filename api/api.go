package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidhonghikim/griot-sub000/api/mcp"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

// Service is everything the API serves. *pipeline.Orchestrator implements
// it.
type Service interface {
	mcp.Service

	UpdateEntityVectors(ctx context.Context, id string) vectorize.Result
	VectorizeAll(ctx context.Context) ([]vectorize.Result, error)
	Refresh(id string) bool

	CheckHealth(ctx context.Context) error
	GetAvailableModels(ctx context.Context) ([]string, error)
	Backend() (name, endpoint string)
	Model() string

	Registry() *prometheus.Registry
}

// Server is the API server for querying and maintaining personas.
type Server struct {
	config Config
	svc    Service
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The service is injected so the same
// pipeline can back the CLI and the server.
func NewServer(config Config, svc Service, logger *slog.Logger) (*Server, error) {
	// Path params outlive the handler in the refresh queue and the persona
	// index, so values must not alias fiber's reused request buffers.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		config: config,
		svc:    svc,
		logger: logger,
		app:    app,
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: svc,
		Noop:    config.DisableMCP,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(svc.Registry(), promhttp.HandlerOpts{})))
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/query", s.handleQuery)
	v1.Get("/stats", s.handleStats)

	personas := v1.Group("/personas")
	personas.Post("/search", s.handleSearch)
	personas.Post("/best", s.handleBest)
	personas.Post("/ensemble", s.handleEnsemble)
	personas.Post("/recommendations", s.handleRecommendations)
	personas.Post("/vectorize", s.handleVectorizeAll)
	personas.Post("/:id/vectorize", s.handleVectorize)
	personas.Post("/:id/refresh", s.handleRefresh)

	backend := v1.Group("/backend")
	backend.Get("/health", s.handleBackendHealth)
	backend.Get("/models", s.handleBackendModels)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
