package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/internal/pkg/billing"
	"github.com/ManuelReschke/PrepVault/internal/pkg/usercontext"
)

// AccessChecker answers whether a user may use content sold under a plan.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID uint, role, planCode string) (bool, error)
}

// RequirePremium guards routes behind the entitlement for planCode.
func RequirePremium(checker AccessChecker, planCode string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := usercontext.GetUserContext(c)
		ok, err := checker.HasAccess(c.UserContext(), u.UserID, u.Role, planCode)
		if err != nil {
			if errors.Is(err, billing.ErrPlanNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plan_not_found"})
			}
			log.Errorf("[Billing] Access check for user %d plan %s failed: %v", u.UserID, planCode, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":     "premium_required",
				"plan_code": planCode,
			})
		}
		return c.Next()
	}
}
