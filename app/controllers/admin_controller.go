package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/app/repository"
	"github.com/ManuelReschke/PrepVault/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PrepVault/internal/pkg/usercontext"
)

// OutcomeStats reads and clears the finalization counters.
type OutcomeStats interface {
	Snapshot(ctx context.Context) ([]counter.Entry, error)
	Reset(ctx context.Context) error
}

// AdminController serves operator views over billing state
type AdminController struct {
	repos    *repository.Repositories
	outcomes OutcomeStats
}

// NewAdminController creates a new admin controller with repository dependencies.
// outcomes may be nil when no cache is configured.
func NewAdminController(repos *repository.Repositories, outcomes OutcomeStats) *AdminController {
	return &AdminController{
		repos:    repos,
		outcomes: outcomes,
	}
}

// HandleBillingStats returns verify/webhook outcome counters.
func (ac *AdminController) HandleBillingStats(c *fiber.Ctx) error {
	if ac.outcomes == nil {
		return c.JSON(fiber.Map{"outcomes": []counter.Entry{}})
	}
	entries, err := ac.outcomes.Snapshot(c.UserContext())
	if err != nil {
		log.Warnf("[Billing] Reading outcome counters failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.JSON(fiber.Map{"outcomes": entries})
}

// HandleResetBillingStats clears the outcome counters, e.g. after a deploy.
func (ac *AdminController) HandleResetBillingStats(c *fiber.Ctx) error {
	if ac.outcomes == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err := ac.outcomes.Reset(c.UserContext()); err != nil {
		log.Warnf("[Billing] Resetting outcome counters failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	log.Infof("[Billing] Outcome counters reset by user %d", usercontext.GetUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleWebhookEvents lists the most recent webhook deliveries.
func (ac *AdminController) HandleWebhookEvents(c *fiber.Ctx) error {
	events, err := ac.repos.WebhookEvent.ListRecent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[Webhook] Listing journal failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"events": events})
}
