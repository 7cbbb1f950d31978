package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/app/models"
)

// Webhook event types that confirm a successful payment.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentLinkPaid = "payment_link.paid"
)

type webhookEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type webhookEnvelope struct {
	Entity  string `json:"entity"`
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity webhookEntity `json:"entity"`
		} `json:"order"`
		PaymentLink *struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// WebhookEvent is the subset of a gateway event the reconciler acts on.
type WebhookEvent struct {
	Type      string
	OrderID   string
	PaymentID string
	Amount    int64
}

// ParseWebhookEvent decodes a webhook body and pulls the order id out of
// whichever nested shape the event type uses. A body that decodes but carries
// no order id yields an event with an empty OrderID, not an error.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := &WebhookEvent{Type: strings.ToLower(strings.TrimSpace(env.Event))}

	var payment, order, link *webhookEntity
	if env.Payload.Payment != nil {
		payment = &env.Payload.Payment.Entity
	}
	if env.Payload.Order != nil {
		order = &env.Payload.Order.Entity
	}
	if env.Payload.PaymentLink != nil {
		link = &env.Payload.PaymentLink.Entity
	}

	var candidates []string
	switch ev.Type {
	case EventOrderPaid:
		candidates = []string{entityID(order), entityOrderID(payment)}
	case EventPaymentLinkPaid:
		candidates = []string{entityOrderID(link), entityID(order), entityOrderID(payment)}
	default:
		candidates = []string{entityOrderID(payment), entityID(order), entityOrderID(link)}
	}
	for _, c := range candidates {
		if c != "" {
			ev.OrderID = c
			break
		}
	}

	if payment != nil {
		ev.PaymentID = strings.TrimSpace(payment.ID)
		ev.Amount = payment.Amount
	}
	return ev, nil
}

func entityID(e *webhookEntity) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.ID)
}

func entityOrderID(e *webhookEntity) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.OrderID)
}

func isPaymentSucceededEvent(eventType string) bool {
	switch eventType {
	case EventPaymentCaptured, EventOrderPaid, EventPaymentLinkPaid:
		return true
	default:
		return false
	}
}

// HandleWebhook reconciles one gateway delivery. Only a bad signature or an
// undecodable body is an error; every other path returns a result the caller
// acknowledges so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) (*WebhookResult, error) {
	if !VerifyWebhookSignature(in.RawBody, in.Signature, s.cfg.WebhookSecret) {
		log.Warnf("[Webhook] Signature verification failed (%d bytes)", len(in.RawBody))
		return nil, ErrInvalidSignature
	}

	ev, err := ParseWebhookEvent(in.RawBody)
	if err != nil {
		return nil, err
	}

	journalID := s.journal(ctx, in, ev)
	result, procErr := s.reconcile(ctx, ev)
	s.markJournal(ctx, journalID, procErr)
	if procErr != nil {
		return nil, procErr
	}
	s.countOutcome(ctx, "webhook", result.Outcome)
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, ev *WebhookEvent) (*WebhookResult, error) {
	result := &WebhookResult{Outcome: OutcomeIgnored, EventType: ev.Type, OrderID: ev.OrderID}
	if ev.OrderID == "" {
		log.Infof("[Webhook] Event %q carries no order id, ignoring", ev.Type)
		return result, nil
	}

	payment, err := s.lookupPayment(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Infof("[Webhook] Unknown order %s (%s), ignoring", ev.OrderID, ev.Type)
			return result, nil
		}
		return nil, err
	}

	if payment.IsSettled() {
		result.Outcome = OutcomeAlreadyProcessed
		return result, nil
	}
	if !isPaymentSucceededEvent(ev.Type) {
		return result, nil
	}
	if payment.Status != models.PaymentStatusPending {
		return result, nil
	}
	if ev.Amount != 0 && ev.Amount != payment.AmountMinor {
		log.Warnf("[Webhook] Amount %d for order %s does not match expected %d, ignoring", ev.Amount, ev.OrderID, payment.AmountMinor)
		return result, nil
	}

	outcome, _, err := s.finalize(ctx, payment, ev.PaymentID, "", "webhook")
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	return result, nil
}

// journal records the delivery for audit. Failures are logged only.
func (s *Service) journal(ctx context.Context, in WebhookInput, ev *WebhookEvent) uint {
	if s.events == nil {
		return 0
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		sum := sha256.Sum256(in.RawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}
	created, stored, err := s.events.Record(ctx, &models.PaymentWebhookEvent{
		Provider:        models.PaymentProviderRazorpay,
		ProviderEventID: eventID,
		EventType:       ev.Type,
		GatewayOrderID:  ev.OrderID,
		PayloadJSON:     string(in.RawBody),
	})
	if err != nil {
		log.Warnf("[Webhook] Could not journal event %s: %v", eventID, err)
		return 0
	}
	if !created {
		log.Infof("[Webhook] Redelivery of event %s (%d deliveries)", eventID, stored.Deliveries)
	}
	return stored.ID
}

func (s *Service) markJournal(ctx context.Context, id uint, procErr error) {
	if s.events == nil || id == 0 {
		return
	}
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := s.events.MarkProcessed(ctx, id, msg); err != nil {
		log.Warnf("[Webhook] Could not mark event %d processed: %v", id, err)
	}
}
