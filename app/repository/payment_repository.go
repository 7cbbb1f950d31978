package repository

import (
	"context"

	"github.com/ManuelReschke/PrepVault/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create persists a new purchase attempt
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByGatewayOrderID retrieves a payment by the gateway order id
func (r *paymentRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// Transition applies t only if the row still has status t.From. It issues a
// single UPDATE ... WHERE id = ? AND status = ? and reports whether this call
// changed the row. Concurrent finalizers race on this statement; exactly one
// of them sees true.
func (r *paymentRepository) Transition(ctx context.Context, paymentID uint, t PaymentTransition) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	cols, row := t.columns()
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, t.From).
		Select(cols).
		Updates(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByUser returns the user's purchase attempts, newest first
func (r *paymentRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
