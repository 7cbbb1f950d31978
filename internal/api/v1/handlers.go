package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/PrepVault/app/controllers"
	"github.com/ManuelReschke/PrepVault/app/repository"
	"github.com/ManuelReschke/PrepVault/internal/pkg/billing"
	"github.com/ManuelReschke/PrepVault/internal/pkg/middleware"
)

// Pong is the health response body.
type Pong struct {
	Ping     string `json:"ping"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// APIServer binds the v1 routes to their controllers.
type APIServer struct {
	db      *gorm.DB
	svc     *billing.Service
	billing *controllers.BillingController
	admin   *controllers.AdminController

	jwtSecret []byte
	limiter   fiber.Handler
}

// NewAPIServer creates a new API server instance. limiter guards the
// gateway-facing routes and may be nil, as may stats.
func NewAPIServer(db *gorm.DB, svc *billing.Service, jwtSecret []byte, limiter fiber.Handler, stats controllers.OutcomeStats) *APIServer {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &APIServer{
		db:        db,
		svc:       svc,
		billing:   controllers.NewBillingController(svc),
		admin:     controllers.NewAdminController(repository.NewRepositories(db), stats),
		jwtSecret: jwtSecret,
		limiter:   limiter,
	}
}

// GetPing reports liveness and whether the database answers.
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping:     "pong",
		Database: "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
	}
	status := fiber.StatusOK
	if s.db == nil {
		response.Database = "unavailable"
		status = fiber.StatusServiceUnavailable
	} else if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		response.Database = "unavailable"
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(response)
}

// RegisterHandlers installs the v1 routes on router.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Use(middleware.UserContextMiddleware(s.jwtSecret))

	router.Get("/plans", s.billing.HandleListPlans)
	router.Post("/webhooks/payment", s.billing.HandlePaymentWebhook)

	auth := middleware.RequireAuth
	router.Get("/access/status", auth, s.billing.HandleAccessStatus)
	router.Get("/access/check/:code", auth, s.billing.HandleAccessCheck)
	router.Get("/payments", auth, s.billing.HandlePaymentHistory)
	router.Get("/notifications", auth, s.billing.HandleNotifications)
	router.Post("/order", auth, s.limiter, s.billing.HandleCreateOrder)
	router.Post("/verify", auth, s.limiter, s.billing.HandleVerifyPayment)

	router.Get("/admin/billing/stats", auth, middleware.RequireAdmin, s.admin.HandleBillingStats)
	router.Delete("/admin/billing/stats", auth, middleware.RequireAdmin, s.admin.HandleResetBillingStats)
	router.Get("/admin/billing/webhooks", auth, middleware.RequireAdmin, s.admin.HandleWebhookEvents)

	// Premium content listings, one per category.
	router.Get("/content/archive", auth, middleware.RequirePremium(s.svc, "archive"), contentPlaceholder("archive"))
	router.Get("/content/materials", auth, middleware.RequirePremium(s.svc, "materials"), contentPlaceholder("materials"))
}

func contentPlaceholder(category string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"category": category, "items": []string{}})
	}
}
