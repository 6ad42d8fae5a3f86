package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/quicktrends/couponfunnel/internal/app/service"
	"go.uber.org/zap"
)

const defaultCourseListLimit = 20

// APIHandlerDeps groups dependencies required by the catalog API handlers.
type APIHandlerDeps struct {
	Logger *zap.Logger
	Funnel *service.FunnelService
}

// APIHandler exposes read-only catalog data consumed by the site pages.
type APIHandler struct {
	logger *zap.Logger
	funnel *service.FunnelService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIHandlerDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger: logger,
		funnel: deps.Funnel,
	}
}

// Register wires catalog routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/courses", h.ListCourses)
		api.Get("/stats", h.Stats)
	}
}

// ListCourses handles GET /api/courses: active feed records, best-rated
// first, optionally filtered by category.
func (h *APIHandler) ListCourses(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultCourseListLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultCourseListLimit
	}

	courses := h.funnel.ActiveCourses(userContext(c), c.Query("category"), limit)
	return c.JSON(fiber.Map{
		"courses": courses,
		"count":   len(courses),
	})
}

// Stats handles GET /api/stats: active course count and feed freshness.
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.funnel.Stats(userContext(c)))
}
