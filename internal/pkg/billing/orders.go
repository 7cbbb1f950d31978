package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PrepVault/app/models"
)

const maxReceiptLen = 40

// CreateOrder opens a purchase attempt. Free plans are granted immediately and
// recorded as a "free" payment; paid plans get a gateway order and a pending
// payment. Nothing is persisted when the gateway call fails.
func (s *Service) CreateOrder(ctx context.Context, userID uint, planCode string) (*OrderResult, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	plan, err := s.catalog.GetByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, ErrPlanInactive
	}

	if plan.IsFreePlan() {
		return s.createFreeOrder(ctx, userID, plan)
	}
	return s.createPaidOrder(ctx, userID, plan)
}

func (s *Service) createFreeOrder(ctx context.Context, userID uint, plan *models.Plan) (*OrderResult, error) {
	expiresAt, err := s.granter.Grant(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	payment := &models.Payment{
		UserID:         userID,
		PlanID:         plan.ID,
		AmountMinor:    0,
		Currency:       s.cfg.currency(),
		GatewayOrderID: "free_" + uuid.NewString(),
		Status:         models.PaymentStatusFree,
		PaidAt:         &paidAt,
	}
	// The record is for history only; the grant above already stands.
	if err := s.payments.Create(ctx, payment); err != nil {
		log.Errorf("[Billing] Free grant for user %d plan %s not recorded: %v", userID, plan.Code, err)
	}

	return &OrderResult{
		Free:      true,
		PlanCode:  plan.Code,
		ExpiresAt: &expiresAt,
		OrderID:   payment.GatewayOrderID,
		Amount:    0,
		Currency:  payment.Currency,
	}, nil
}

func (s *Service) createPaidOrder(ctx context.Context, userID uint, plan *models.Plan) (*OrderResult, error) {
	if !s.cfg.GatewayConfigured() || s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	currency := s.cfg.currency()
	receipt := s.receipt(userID, plan.Code)
	order, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   plan.PriceMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"user_id":   strconv.FormatUint(uint64(userID), 10),
			"plan_code": plan.Code,
		},
	})
	if err != nil {
		if errors.Is(err, ErrGatewayNotConfigured) {
			return nil, err
		}
		log.Errorf("[Billing] Gateway order for user %d plan %s failed: %v", userID, plan.Code, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if order.Amount != 0 && order.Amount != plan.PriceMinor {
		log.Errorf("[Billing] Gateway echoed amount %d for order %s, expected %d", order.Amount, order.ID, plan.PriceMinor)
		return nil, fmt.Errorf("%w: amount mismatch on order %s", ErrGatewayUnavailable, order.ID)
	}

	payment := &models.Payment{
		UserID:         userID,
		PlanID:         plan.ID,
		AmountMinor:    plan.PriceMinor,
		Currency:       currency,
		Receipt:        receipt,
		GatewayOrderID: order.ID,
		Status:         models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist payment for order %s: %w", order.ID, err)
	}
	log.Infof("[Billing] Order %s opened for user %d plan %s amount %d %s", order.ID, userID, plan.Code, plan.PriceMinor, currency)

	return &OrderResult{
		Free:     false,
		PlanCode: plan.Code,
		OrderID:  order.ID,
		Amount:   plan.PriceMinor,
		Currency: currency,
		KeyID:    s.cfg.KeyID,
	}, nil
}

// receipt is unique per (user, plan, timestamp) and fits the gateway's limit.
func (s *Service) receipt(userID uint, planCode string) string {
	r := fmt.Sprintf("rcpt_%d_%s_%s", userID, planCode, strconv.FormatInt(s.now().UnixNano(), 36))
	if len(r) > maxReceiptLen {
		r = r[len(r)-maxReceiptLen:]
	}
	return r
}
