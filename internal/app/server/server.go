package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/quicktrends/couponfunnel/internal/app/service"
	inthttp "github.com/quicktrends/couponfunnel/internal/http/handler"
	"github.com/quicktrends/couponfunnel/internal/http/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Logger *zap.Logger
	Funnel *service.FunnelService

	// Redis enables per-IP rate limiting when present.
	Redis            *redis.Client
	RateLimitPerHour int
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())

	if s.deps.Redis != nil {
		cfg := middleware.DefaultRateLimitConfig()
		if s.deps.RateLimitPerHour > 0 {
			cfg.MaxRequests = s.deps.RateLimitPerHour
			cfg.Window = time.Hour
		}
		s.app.Use(middleware.RateLimit(s.deps.Redis, cfg, s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	funnelHandler := inthttp.NewFunnelHandler(inthttp.FunnelHandlerDeps{
		Logger: s.deps.Logger,
		Funnel: s.deps.Funnel,
	})
	funnelHandler.Register(s.app)

	analyticsHandler := inthttp.NewAnalyticsHandler(inthttp.AnalyticsHandlerDeps{
		Logger: s.deps.Logger,
		Funnel: s.deps.Funnel,
	})
	analyticsHandler.Register(s.app)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIHandlerDeps{
		Logger: s.deps.Logger,
		Funnel: s.deps.Funnel,
	})
	apiHandler.Register(s.app)
}
