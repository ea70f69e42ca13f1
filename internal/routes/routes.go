package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/earnflow/earnflow/internal/config"
	"github.com/earnflow/earnflow/internal/fraud"
	"github.com/earnflow/earnflow/internal/hold"
	"github.com/earnflow/earnflow/internal/ledger"
	"github.com/earnflow/earnflow/internal/middleware"
	"github.com/earnflow/earnflow/internal/notification"
	"github.com/earnflow/earnflow/internal/vending"
	"github.com/earnflow/earnflow/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	Vendor vending.Vendor
}

// App bundles the services built during route setup that the caller needs
// to run alongside the HTTP listener.
type App struct {
	Holds *hold.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*App, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Storage
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var scores fraud.ScoreStore
	if d.DB != nil {
		scores = fraud.NewPostgresScoreStore(d.DB)
	} else {
		scores = fraud.NewMemoryScoreStore()
	}

	var velocity fraud.VelocityCounter
	if d.Cache != nil {
		velocity = fraud.NewRedisVelocity(d.Cache)
	} else {
		velocity = fraud.NewMemoryVelocity()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	devices := fraud.NewMemoryRegistry()
	aggregator := fraud.NewAggregator(store, devices, velocity, scores, fraud.DefaultConfig(), d.Logger)
	policy := hold.NewRiskPolicy(aggregator, d.Cfg.FlagThreshold, d.Cfg.BlockThreshold, d.Logger)

	holdSvc := hold.NewService(store, policy, aggregator, notifier, d.Logger).WithTTL(d.Cfg.HoldTTL)
	walletSvc := wallet.NewService(store)
	vendSvc := vending.NewService(holdSvc, d.Vendor, velocity, notifier, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	holdHandler := hold.NewHandler(holdSvc)
	vendHandler := vending.NewHandler(vendSvc)
	fraudHandler := fraud.NewHandler(aggregator)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterHoldRoutes(api, holdHandler)
	vendLimiter := middleware.VendRateLimit(d.Cache, d.Cfg.VendRateLimit)
	RegisterVendingRoutes(api, vendHandler, vendLimiter)
	RegisterFraudRoutes(api, fraudHandler)

	return &App{Holds: holdSvc}, nil
}
