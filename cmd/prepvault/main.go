package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PrepVault/app/repository"
	apiv1 "github.com/ManuelReschke/PrepVault/internal/api/v1"
	"github.com/ManuelReschke/PrepVault/internal/pkg/billing"
	"github.com/ManuelReschke/PrepVault/internal/pkg/cache"
	"github.com/ManuelReschke/PrepVault/internal/pkg/database"
	"github.com/ManuelReschke/PrepVault/internal/pkg/env"
	"github.com/ManuelReschke/PrepVault/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PrepVault/internal/pkg/middleware"
	"github.com/ManuelReschke/PrepVault/internal/pkg/router"
)

func main() {
	app, err := NewApplication(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	err = app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication(ctx context.Context) (*fiber.App, error) {
	if !env.SetupEnvFile() {
		log.Warn("No .env file found, using process environment only")
	}
	if env.IsDev() {
		log.SetLevel(log.LevelDebug)
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	if env.GetEnv("DB_AUTO_MIGRATE", "false") == "true" {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		if err := database.SeedPlans(ctx, db); err != nil {
			return nil, fmt.Errorf("seed plans: %w", err)
		}
	}

	cacheClient := cache.NewClient(ctx, cache.ConfigFromEnv())
	var limiterStorage fiber.Storage
	if cacheClient.Ping(ctx).Err() == nil {
		limiterStorage = cache.NewLimiterStorage(cacheClient)
	}

	cfg := billing.ConfigFromEnv()
	if !cfg.GatewayConfigured() {
		log.Warn("[Billing] RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET not set, paid orders are disabled")
	}
	if cfg.WebhookSecret == "" {
		log.Warn("[Webhook] RAZORPAY_WEBHOOK_SECRET not set, every webhook will be rejected")
	}
	outcomes := counter.NewOutcomes(cacheClient)
	repos := repository.NewRepositories(db)
	svc := billing.NewService(repos, billing.NewRazorpayClient(cfg), cfg,
		billing.WithPlanCache(cache.NewStore(cacheClient, "prepvault:"), env.GetDuration("PLAN_CACHE_TTL", time.Minute)),
		billing.WithOutcomeRecorder(outcomes),
	)

	jwtSecret := []byte(env.GetEnv("JWT_SECRET", ""))
	if len(jwtSecret) == 0 {
		log.Warn("JWT_SECRET not set, all authenticated routes will answer 401")
	}
	limiter := middleware.RateLimit(limiterStorage,
		env.GetInt("RATE_LIMIT_MAX", 10),
		env.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
	)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "PrepVault",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if user, pass := env.GetEnv("METRICS_USER", ""), env.GetEnv("METRICS_PASSWORD", ""); user != "" && pass != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				user: pass,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if specPath := findFile("public/docs/v1/openapi.yml"); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	}

	// ROUTER
	server := apiv1.NewAPIServer(db, svc, jwtSecret, limiter, outcomes)
	router.InstallRouter(app, router.NewApiRouter(server))

	return app, nil
}

// findFile resolves path relative to the current directory or the project
// root when started from cmd/prepvault.
func findFile(path string) string {
	for _, base := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(base + path); err == nil {
			return base + path
		}
	}
	return ""
}
