package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BestRequest is the body of POST /v1/personas/best.
type BestRequest struct {
	Query string `json:"query"`
	retrieval.SelectOptions
}

// EnsembleRequest is the body of POST /v1/personas/ensemble. A missing size
// means retrieval.DefaultEnsembleSize.
type EnsembleRequest struct {
	Query string `json:"query"`
	Size  int    `json:"size"`
	retrieval.EnsembleOptions
}

// RecommendationsRequest is the body of POST /v1/personas/recommendations.
type RecommendationsRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	retrieval.RecommendOptions
}

// VectorizeAllResponse summarizes POST /v1/personas/vectorize.
type VectorizeAllResponse struct {
	Results   []vectorize.Result `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// RefreshResponse is returned by POST /v1/personas/:id/refresh.
type RefreshResponse struct {
	PersonaID string `json:"persona_id"`
	Queued    bool   `json:"queued"`
}

// HealthResponse is returned by GET /v1/backend/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
}

// ModelsResponse is returned by GET /v1/backend/models.
type ModelsResponse struct {
	Backend string   `json:"backend"`
	Models  []string `json:"models"`
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, errdefs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errdefs.ErrProviderUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, errdefs.ErrBackendGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request body must be JSON"})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleQuery runs retrieval-augmented generation. The tagged response is
// returned as-is with 200.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req generation.Request
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return c.JSON(s.svc.Query(c.UserContext(), req))
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req retrieval.Request
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return c.JSON(s.svc.Search(c.UserContext(), req))
}

func (s *Server) handleBest(c *fiber.Ctx) error {
	var req BestRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return c.JSON(s.svc.SelectBestPersona(c.UserContext(), req.Query, req.SelectOptions))
}

func (s *Server) handleEnsemble(c *fiber.Ctx) error {
	var req EnsembleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	size := req.Size
	if size <= 0 {
		size = retrieval.DefaultEnsembleSize
	}
	return c.JSON(s.svc.GetPersonaEnsemble(c.UserContext(), req.Query, size, req.EnsembleOptions))
}

func (s *Server) handleRecommendations(c *fiber.Ctx) error {
	var req RecommendationsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return c.JSON(s.svc.GetPersonaRecommendations(c.UserContext(), req.Query, req.UserID, req.RecommendOptions))
}

// handleVectorize revectorizes one persona synchronously.
func (s *Server) handleVectorize(c *fiber.Ctx) error {
	return c.JSON(s.svc.UpdateEntityVectors(c.UserContext(), c.Params("id")))
}

// handleRefresh queues an asynchronous revectorization.
func (s *Server) handleRefresh(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.svc.Refresh(id) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "revectorize queue is full"})
	}
	return c.Status(fiber.StatusAccepted).JSON(RefreshResponse{PersonaID: id, Queued: true})
}

func (s *Server) handleVectorizeAll(c *fiber.Ctx) error {
	results, err := s.svc.VectorizeAll(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}

	out := VectorizeAllResponse{Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return c.JSON(out)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.svc.GetStats(c.UserContext()))
}

func (s *Server) handleBackendHealth(c *fiber.Ctx) error {
	if err := s.svc.CheckHealth(c.UserContext()); err != nil {
		return s.fail(c, err)
	}

	name, endpoint := s.svc.Backend()
	return c.JSON(HealthResponse{
		Status:   "ok",
		Backend:  name,
		Endpoint: endpoint,
		Model:    s.svc.Model(),
	})
}

func (s *Server) handleBackendModels(c *fiber.Ctx) error {
	models, err := s.svc.GetAvailableModels(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}

	name, _ := s.svc.Backend()
	if models == nil {
		models = []string{}
	}
	return c.JSON(ModelsResponse{Backend: name, Models: models})
}
