package models

import "time"

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFree     = "free"
)

// Payment tracks one purchase attempt from order creation to a terminal state.
// Status moves only pending->paid, pending->free or pending->failed.
type Payment struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	PlanID           uint       `gorm:"not null;index" json:"plan_id"`
	Plan             *Plan      `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	AmountMinor      int64      `gorm:"not null;default:0" json:"amount_minor"`
	Currency         string     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	Receipt          string     `gorm:"type:varchar(64);not null;default:''" json:"receipt"`
	GatewayOrderID   string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_gateway_order" json:"gateway_order_id"`
	GatewayPaymentID *string    `gorm:"type:varchar(64);uniqueIndex:ux_payments_gateway_payment" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string    `gorm:"type:varchar(128)" json:"-"`
	Status           string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
}

// IsTerminal reports whether no further transition is allowed.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusPaid, PaymentStatusFree, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// IsSettled reports whether the payment already produced a grant.
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFree
}
