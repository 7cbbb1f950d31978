package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PrepVault/app/models"
	"github.com/ManuelReschke/PrepVault/app/repository"
)

// lookupPayment maps a missing row to ErrOrderNotFound.
func (s *Service) lookupPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	payment, err := s.payments.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load payment for order %s: %w", orderID, err)
	}
	return payment, nil
}

// finalize moves a pending payment to paid and grants on success. Both the
// client verifier and the webhook reconciler end here; the conditional update
// decides which of them grants. A lost race is reported as already processed.
func (s *Service) finalize(ctx context.Context, payment *models.Payment, gatewayPaymentID, signature string, source string) (Outcome, *time.Time, error) {
	plan, err := s.catalog.GetByID(ctx, payment.PlanID)
	if err != nil {
		return "", nil, err
	}

	paidAt := s.now()
	t := repository.PaymentTransition{
		From:   models.PaymentStatusPending,
		To:     models.PaymentStatusPaid,
		PaidAt: &paidAt,
	}
	if gatewayPaymentID != "" {
		t.GatewayPaymentID = &gatewayPaymentID
	}
	if signature != "" {
		t.GatewaySignature = &signature
	}

	won, err := s.payments.Transition(ctx, payment.ID, t)
	if err != nil {
		return "", nil, fmt.Errorf("finalize order %s: %w", payment.GatewayOrderID, err)
	}
	if !won {
		log.Infof("[Billing] Order %s already finalized, %s finalizer is a no-op", payment.GatewayOrderID, source)
		return OutcomeAlreadyProcessed, nil, nil
	}

	expiresAt, err := s.granter.Grant(ctx, payment.UserID, plan)
	if err != nil {
		// The payment is paid but the ledger write did not land.
		log.Errorf("[Billing] Order %s paid via %s but grant failed for user %d: %v", payment.GatewayOrderID, source, payment.UserID, err)
		return "", nil, err
	}
	log.Infof("[Billing] Order %s finalized via %s for user %d", payment.GatewayOrderID, source, payment.UserID)
	return OutcomeGranted, &expiresAt, nil
}
