package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/quicktrends/couponfunnel/internal/app/model"
	"github.com/quicktrends/couponfunnel/internal/app/service"
	infraPrometheus "github.com/quicktrends/couponfunnel/internal/infra/prometheus"
	"go.uber.org/zap"
)

// AnalyticsHandlerDeps groups dependencies required by the beacon handler.
type AnalyticsHandlerDeps struct {
	Logger *zap.Logger
	Funnel *service.FunnelService
}

// AnalyticsHandler accepts client-side engagement and conversion beacons.
type AnalyticsHandler struct {
	logger *zap.Logger
	funnel *service.FunnelService
}

// NewAnalyticsHandler creates an analytics handler with the provided
// dependencies.
func NewAnalyticsHandler(deps AnalyticsHandlerDeps) *AnalyticsHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{
		logger: logger,
		funnel: deps.Funnel,
	}
}

// Register wires the beacon route. Only POST is registered; fiber answers
// other methods on the path with 405.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Post("/api/analytics", h.Track)
}

// beaconRequest accepts either JSON or form-encoded beacon bodies; the
// client script uses sendBeacon with a form payload.
type beaconRequest struct {
	EventType string `json:"event_type" form:"event_type"`
	URL       string `json:"url" form:"url"`
	TimeSpent int    `json:"time_spent" form:"time_spent"`
	MaxScroll int    `json:"max_scroll" form:"max_scroll"`
	AdViews   int    `json:"ad_views" form:"ad_views"`
	Timestamp int64  `json:"timestamp" form:"timestamp"`
}

// Track handles POST /api/analytics.
func (h *AnalyticsHandler) Track(c *fiber.Ctx) error {
	var req beaconRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	input := service.BeaconInput{
		EventType: model.EventType(req.EventType),
		URL:       req.URL,
		TimeSpent: req.TimeSpent,
		MaxScroll: req.MaxScroll,
		AdViews:   req.AdViews,
		Timestamp: req.Timestamp,
	}

	if err := h.funnel.RecordBeacon(userContext(c), input, resolveVisitor(c)); err != nil {
		if errors.Is(err, service.ErrUnknownEventType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid event type",
			})
		}
		h.logger.Error("failed to record beacon", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	infraPrometheus.BeaconEvents.WithLabelValues(req.EventType).Inc()
	return c.JSON(fiber.Map{"status": "success"})
}
