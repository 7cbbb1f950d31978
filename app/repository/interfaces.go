package repository

import (
	"context"

	"github.com/ManuelReschke/PrepVault/app/models"
	"gorm.io/gorm"
)

// PlanRepository defines read access to the plan catalog
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id uint) (*models.Plan, error)
	GetByCode(ctx context.Context, code string) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
}

// PaymentRepository defines the operations on purchase attempts. Transition is
// the only mutation and must run as one conditional UPDATE.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	Transition(ctx context.Context, paymentID uint, t PaymentTransition) (bool, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Payment, error)
}

// AccessGrantRepository defines the persisted entitlement ledger
type AccessGrantRepository interface {
	Ensure(ctx context.Context, userID uint) (*models.AccessGrant, error)
	Apply(ctx context.Context, userID uint, u GrantUpdate) error
}

// NotificationRepository defines the operations on user notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
}

// WebhookEventRepository journals gateway webhook deliveries
type WebhookEventRepository interface {
	Record(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
	ListRecent(ctx context.Context, limit int) ([]models.PaymentWebhookEvent, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Plan         PlanRepository
	Payment      PaymentRepository
	AccessGrant  AccessGrantRepository
	Notification NotificationRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Plan:         NewPlanRepository(db),
		Payment:      NewPaymentRepository(db),
		AccessGrant:  NewAccessGrantRepository(db),
		Notification: NewNotificationRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
