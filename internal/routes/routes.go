package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/seer-points/seer_points/internal/admin"
	"github.com/seer-points/seer_points/internal/config"
	"github.com/seer-points/seer_points/internal/fortune"
	"github.com/seer-points/seer_points/internal/ledger"
	"github.com/seer-points/seer_points/internal/middleware"
	"github.com/seer-points/seer_points/internal/notification"
	"github.com/seer-points/seer_points/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	limits := d.Cfg.Limits()
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, limits)
	} else {
		store = ledger.NewInMemory()
	}

	auditor := ledger.NewAuditor(d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	ledgerSvc := ledger.NewService(store, limits, auditor, notifier)
	fortuneSvc := fortune.NewService(ledgerSvc, nil)

	walletHandler := wallet.NewHandler(ledgerSvc)
	fortuneHandler := fortune.NewHandler(fortuneSvc)
	adminHandler := admin.NewHandler(ledgerSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	mutationLimiter := middleware.MutationRateLimit(d.Cache, d.Cfg.MutationRate)
	RegisterWalletRoutes(api, walletHandler, mutationLimiter)
	RegisterFortuneRoutes(api, fortuneHandler, mutationLimiter)

	adminGuard := middleware.AdminAuth(d.Cfg.AdminKeyHash)
	RegisterAdminRoutes(api, adminHandler, adminGuard)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
