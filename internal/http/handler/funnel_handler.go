package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/quicktrends/couponfunnel/internal/app/service"
	infraPrometheus "github.com/quicktrends/couponfunnel/internal/infra/prometheus"
	"go.uber.org/zap"
)

// FunnelHandlerDeps groups dependencies required by the funnel handlers.
type FunnelHandlerDeps struct {
	Logger *zap.Logger
	Funnel *service.FunnelService
}

// FunnelHandler exposes the two-step redirect funnel.
type FunnelHandler struct {
	logger *zap.Logger
	funnel *service.FunnelService
}

// NewFunnelHandler creates a funnel handler with the provided dependencies.
func NewFunnelHandler(deps FunnelHandlerDeps) *FunnelHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FunnelHandler{
		logger: logger,
		funnel: deps.Funnel,
	}
}

// Register wires funnel routes onto the provided router.
func (h *FunnelHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/go", h.Landing)
	router.Get("/step2", h.Final)
}

// Health is a simple root endpoint so we know the service is running.
func (h *FunnelHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "couponfunnel",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Landing handles GET /go?u=<target_url>: course detail plus both
// recommendation rows.
func (h *FunnelHandler) Landing(c *fiber.Ctx) error {
	result, err := h.funnel.Landing(userContext(c), targetURL(c), resolveVisitor(c))
	if err != nil {
		return h.funnelError(c, "landing", err)
	}

	infraPrometheus.FunnelRequests.WithLabelValues("landing", "ok").Inc()
	return c.JSON(result)
}

// Final handles GET /step2?u=<target_url>: the confirmation view with the
// outbound link. The allow-list is re-validated here because visitors can
// deep-link straight to this step.
func (h *FunnelHandler) Final(c *fiber.Ctx) error {
	result, err := h.funnel.Final(userContext(c), targetURL(c), resolveVisitor(c))
	if err != nil {
		return h.funnelError(c, "final", err)
	}

	infraPrometheus.FunnelRequests.WithLabelValues("final", "ok").Inc()
	return c.JSON(result)
}

func (h *FunnelHandler) funnelError(c *fiber.Ctx, step string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTargetURL):
		infraPrometheus.FunnelRequests.WithLabelValues(step, "invalid_url").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid target url",
		})
	case errors.Is(err, service.ErrForbiddenDestination):
		infraPrometheus.FunnelRequests.WithLabelValues(step, "forbidden").Inc()
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "destination domain not allowed",
		})
	default:
		h.logger.Error("funnel request failed", zap.String("step", step), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

// targetURL reads the target from the short query key the redirect links
// use, accepting the long form as well.
func targetURL(c *fiber.Ctx) string {
	if u := c.Query("u"); u != "" {
		return u
	}
	return c.Query("target_url")
}

// resolveVisitor extracts client attributes with a fixed precedence for the
// address: trusted proxy header, forwarded-for, then the direct connection.
func resolveVisitor(c *fiber.Ctx) service.Visitor {
	ip := c.Get("CF-Connecting-IP")
	if ip == "" {
		if fwd := c.Get("X-Forwarded-For"); fwd != "" {
			ip = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		}
	}
	if ip == "" {
		ip = c.IP()
	}

	return service.Visitor{
		IP:        ip,
		UserAgent: c.Get("User-Agent"),
		Referrer:  c.Get("Referer"),
	}
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
