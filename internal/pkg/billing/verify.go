package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/app/models"
)

var validate = validator.New()

// VerifyPayment finalizes an order from the client-side proof. The caller must
// own the order and the signature must match; a repeated or late call on a
// settled order returns OutcomeAlreadyProcessed without granting again.
func (s *Service) VerifyPayment(ctx context.Context, userID uint, req VerifyRequest) (*VerifyResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if userID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}

	payment, err := s.lookupPayment(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		log.Warnf("[Billing] User %d tried to verify order %s owned by another user", userID, req.OrderID)
		return nil, ErrOrderNotFound
	}

	if s.cfg.KeySecret == "" {
		return nil, ErrGatewayNotConfigured
	}
	if !VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.cfg.KeySecret) {
		log.Warnf("[Billing] Payment signature mismatch for order %s (user %d)", req.OrderID, userID)
		return nil, ErrInvalidSignature
	}

	if payment.IsSettled() {
		s.countOutcome(ctx, "client", OutcomeAlreadyProcessed)
		return &VerifyResult{Outcome: OutcomeAlreadyProcessed, Status: payment.Status}, nil
	}
	if payment.IsTerminal() {
		return nil, ErrPaymentClosed
	}

	outcome, expiresAt, err := s.finalize(ctx, payment, req.PaymentID, req.Signature, "client")
	if err != nil {
		return nil, err
	}
	s.countOutcome(ctx, "client", outcome)
	return &VerifyResult{Outcome: outcome, Status: models.PaymentStatusPaid, ExpiresAt: expiresAt}, nil
}
