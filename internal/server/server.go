package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/config"
	"mistake-service/internal/handlers"
	"mistake-service/internal/middleware"
)

type Dependencies struct {
	Mistakes handlers.MistakeService
	Sessions handlers.SessionService
	Verifier *middleware.JWTVerifier
	// Healthy reports whether the backing store is reachable; nil means always healthy
	Healthy func(ctx context.Context) bool
}

type Server struct {
	app *fiber.App
	cfg config.ServerConfig
	log logrus.FieldLogger
}

func New(cfg config.ServerConfig, deps Dependencies, log logrus.FieldLogger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	app.Use(recoverer.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"*"},
	}))
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c fiber.Ctx) error {
		if deps.Healthy != nil && !deps.Healthy(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Mistake Service is unhealthy")
		}
		return c.Status(fiber.StatusOK).SendString("Mistake Service is healthy")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	protected := app.Group("/protected", middleware.Authenticate(deps.Verifier, log))
	handlers.NewMistakeHandler(deps.Mistakes, log).RegisterRoutes(protected)
	handlers.NewSessionHandler(deps.Sessions, log).RegisterRoutes(protected)

	return &Server{app: app, cfg: cfg, log: log}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks until the listener stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	s.log.WithField("address", addr).Info("starting HTTP server")
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
