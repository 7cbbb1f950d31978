package billing

import "time"

// Outcome describes how a finalization attempt ended. None of these are errors.
type Outcome string

const (
	OutcomeGranted          Outcome = "granted"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

// OrderResult is returned by CreateOrder. Free results carry the new expiry,
// payable results carry what the client needs for checkout.
type OrderResult struct {
	Free      bool       `json:"free"`
	PlanCode  string     `json:"plan_code"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	OrderID   string     `json:"order_id"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	KeyID     string     `json:"key_id,omitempty"`
}

// VerifyRequest is the client-submitted proof of payment.
type VerifyRequest struct {
	OrderID   string `json:"order_id" validate:"required,max=64"`
	PaymentID string `json:"payment_id" validate:"required,max=64"`
	Signature string `json:"signature" validate:"required,hexadecimal,max=128"`
}

// VerifyResult is returned by VerifyPayment.
type VerifyResult struct {
	Outcome   Outcome    `json:"outcome"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WebhookInput is one webhook delivery as received.
type WebhookInput struct {
	RawBody   []byte
	Signature string
	EventID   string
}

// WebhookResult is returned by HandleWebhook.
type WebhookResult struct {
	Outcome   Outcome `json:"outcome"`
	EventType string  `json:"event"`
	OrderID   string  `json:"order_id,omitempty"`
}
