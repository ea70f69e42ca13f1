package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/earnflow/earnflow/internal/config"
	"github.com/earnflow/earnflow/internal/hold"
	"github.com/earnflow/earnflow/internal/routes"
	"github.com/earnflow/earnflow/internal/vending"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app   *fiber.App
	cfg   config.Config
	db    *pgxpool.Pool
	cache *redis.Client
	holds *hold.Service
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	var vendor vending.Vendor
	if cfg.VendorBaseURL != "" {
		tokens := vending.NewTokenCache(func(context.Context) (string, time.Duration, error) {
			return cfg.VendorAPIKey, time.Hour, nil
		})
		vendor = vending.NewHTTPVendor(cfg.VendorBaseURL, tokens)
	}

	wired, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Vendor: vendor})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, db: db, cache: cache, holds: wired.Holds}, nil
}

// Holds exposes the hold service for background workers.
func (s *Server) Holds() *hold.Service {
	return s.holds
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
