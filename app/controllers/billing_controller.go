package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/internal/pkg/billing"
	"github.com/ManuelReschke/PrepVault/internal/pkg/usercontext"
)

// BillingController serves the plan, order, verification and webhook routes.
type BillingController struct {
	svc *billing.Service
}

func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{svc: svc}
}

type createOrderRequest struct {
	PlanCode string `json:"plan_code"`
}

// HandleListPlans returns all active plans.
func (bc *BillingController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := bc.svc.Catalog().ListActive(c.UserContext())
	if err != nil {
		log.Errorf("[Billing] Listing plans failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleAccessStatus returns the caller's evaluated entitlement windows.
func (bc *BillingController) HandleAccessStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	snap, err := bc.svc.AccessStatus(c.UserContext(), userCtx.UserID)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(snap)
}

// HandleAccessCheck answers whether the caller may use content sold under the
// plan in the route.
func (bc *BillingController) HandleAccessCheck(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	code := strings.TrimSpace(c.Params("code"))
	ok, err := bc.svc.HasAccess(c.UserContext(), userCtx.UserID, userCtx.Role, code)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(fiber.Map{"plan_code": strings.ToLower(code), "has_access": ok})
}

// HandleCreateOrder opens a purchase for the caller.
func (bc *BillingController) HandleCreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}
	userCtx := usercontext.GetUserContext(c)
	res, err := bc.svc.CreateOrder(c.UserContext(), userCtx.UserID, req.PlanCode)
	if err != nil {
		return billingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleVerifyPayment finalizes an order from the client-side proof.
func (bc *BillingController) HandleVerifyPayment(c *fiber.Ctx) error {
	var req billing.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}
	userCtx := usercontext.GetUserContext(c)
	res, err := bc.svc.VerifyPayment(c.UserContext(), userCtx.UserID, req)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "outcome": res.Outcome, "status": res.Status, "expires_at": res.ExpiresAt})
}

// HandlePaymentWebhook reconciles a gateway delivery. Only a bad signature or
// an undecodable body is rejected; everything else is acknowledged so the
// gateway stops retrying.
func (bc *BillingController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	in := billing.WebhookInput{
		RawBody:   rawBody,
		Signature: strings.TrimSpace(c.Get("X-Razorpay-Signature")),
		EventID:   firstHeaderValue(c, "X-Razorpay-Event-Id", "X-Event-Id"),
	}

	res, err := bc.svc.HandleWebhook(c.UserContext(), in)
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warnf("[Webhook] Rejected delivery from %s: invalid signature", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, billing.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case err != nil:
		log.Errorf("[Webhook] Processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": res.Outcome, "event": res.EventType})
}

// HandlePaymentHistory lists the caller's purchase attempts.
func (bc *BillingController) HandlePaymentHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	payments, err := bc.svc.PaymentHistory(c.UserContext(), userCtx.UserID, c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[Billing] Payment history for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// HandleNotifications lists the caller's notifications.
func (bc *BillingController) HandleNotifications(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	notes, err := bc.svc.Notifications(c.UserContext(), userCtx.UserID, c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[Billing] Notifications for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load notifications"})
	}
	return c.JSON(fiber.Map{"notifications": notes})
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
