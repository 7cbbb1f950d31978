package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/internal/pkg/billing"
)

// billingError maps service errors onto the JSON error shape used by the API.
func billingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, billing.ErrPlanNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "plan_not_found", "message": "Unknown plan"})
	case errors.Is(err, billing.ErrPlanInactive):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "plan_inactive", "message": "Plan is not available"})
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature", "message": "Payment signature mismatch"})
	case errors.Is(err, billing.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found", "message": "Order not found"})
	case errors.Is(err, billing.ErrPaymentClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "payment_closed", "message": "Payment can no longer be completed"})
	case errors.Is(err, billing.ErrGatewayNotConfigured):
		log.Error("[Billing] Payment gateway credentials are missing")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gateway_not_configured", "message": "Payments are temporarily unavailable"})
	case errors.Is(err, billing.ErrGatewayUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Payment provider unreachable, please retry"})
	default:
		log.Errorf("[Billing] Unhandled error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
