package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/PrepVault/app/models"
)

// PaymentTransition is the typed patch for a conditional status change.
// Nil pointer fields are left untouched.
type PaymentTransition struct {
	From             string
	To               string
	GatewayPaymentID *string
	GatewaySignature *string
	PaidAt           *time.Time
}

// Validate rejects transitions the payment state machine does not allow.
func (t PaymentTransition) Validate() error {
	if t.From != models.PaymentStatusPending {
		return fmt.Errorf("payment transition must start from %q, got %q", models.PaymentStatusPending, t.From)
	}
	switch t.To {
	case models.PaymentStatusPaid:
		if t.PaidAt == nil || t.PaidAt.IsZero() {
			return errors.New("paid transition requires paid_at")
		}
	case models.PaymentStatusFree, models.PaymentStatusFailed:
	default:
		return fmt.Errorf("unsupported payment transition target %q", t.To)
	}
	return nil
}

func (t PaymentTransition) columns() ([]string, models.Payment) {
	cols := []string{"status"}
	row := models.Payment{Status: t.To}
	if t.GatewayPaymentID != nil {
		cols = append(cols, "gateway_payment_id")
		row.GatewayPaymentID = t.GatewayPaymentID
	}
	if t.GatewaySignature != nil {
		cols = append(cols, "gateway_signature")
		row.GatewaySignature = t.GatewaySignature
	}
	if t.PaidAt != nil {
		cols = append(cols, "paid_at")
		row.PaidAt = t.PaidAt
	}
	return cols, row
}

// GrantUpdate unlocks one category of the ledger until ExpiresAt.
type GrantUpdate struct {
	Category  string
	ExpiresAt time.Time
}

// Validate checks the category and expiry before any store call.
func (u GrantUpdate) Validate() error {
	if u.ExpiresAt.IsZero() {
		return errors.New("grant update requires expires_at")
	}
	switch u.Category {
	case models.CategoryArchive, models.CategoryMaterials, models.CategoryCombo:
		return nil
	default:
		return fmt.Errorf("unknown grant category %q", u.Category)
	}
}

func (u GrantUpdate) columns(now time.Time) ([]string, models.AccessGrant) {
	exp := u.ExpiresAt
	row := models.AccessGrant{UpdatedAt: now}
	switch u.Category {
	case models.CategoryArchive:
		row.ArchiveUnlocked = true
		row.ArchiveExpiresAt = &exp
		return []string{"archive_unlocked", "archive_expires_at", "updated_at"}, row
	case models.CategoryMaterials:
		row.MaterialsUnlocked = true
		row.MaterialsExpiresAt = &exp
		return []string{"materials_unlocked", "materials_expires_at", "updated_at"}, row
	default:
		row.ComboUnlocked = true
		row.ComboExpiresAt = &exp
		return []string{"combo_unlocked", "combo_expires_at", "updated_at"}, row
	}
}
