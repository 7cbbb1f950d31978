package billing

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PrepVault/app/models"
	"github.com/ManuelReschke/PrepVault/app/repository"
)

// Service issues orders, finalizes them from either confirmation channel and
// answers entitlement questions.
type Service struct {
	catalog  *Catalog
	payments repository.PaymentRepository
	ledger   repository.AccessGrantRepository
	notes    repository.NotificationRepository
	events   repository.WebhookEventRepository
	granter  *Granter
	gateway  Gateway
	outcomes OutcomeRecorder
	cfg      Config
	now      func() time.Time
}

// OutcomeRecorder counts finalization results per confirmation channel.
type OutcomeRecorder interface {
	Add(ctx context.Context, source, outcome string) error
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPlanCache puts the active plan list behind a cache.
func WithPlanCache(cache PlanCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.catalog.cache = cache
		if ttl > 0 {
			s.catalog.ttl = ttl
		}
	}
}

// WithOutcomeRecorder counts verify and webhook outcomes.
func WithOutcomeRecorder(rec OutcomeRecorder) Option {
	return func(s *Service) {
		s.outcomes = rec
	}
}

// NewService creates a billing service from injected repositories.
func NewService(repos *repository.Repositories, gateway Gateway, cfg Config, opts ...Option) *Service {
	s := &Service{
		catalog:  NewCatalog(repos.Plan, nil, time.Minute),
		payments: repos.Payment,
		ledger:   repos.AccessGrant,
		notes:    repos.Notification,
		events:   repos.WebhookEvent,
		gateway:  gateway,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.granter = NewGranter(repos.AccessGrant, repos.Notification, s.now)
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, cfg Config, opts ...Option) *Service {
	return NewService(repository.NewRepositories(db), gateway, cfg, opts...)
}

// Catalog exposes the plan registry.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// PaymentHistory lists the user's purchase attempts, newest first.
func (s *Service) PaymentHistory(ctx context.Context, userID uint, limit int) ([]models.Payment, error) {
	return s.payments.ListByUser(ctx, userID, limit)
}

// Notifications lists the user's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	return s.notes.ListByUser(ctx, userID, limit)
}

func (s *Service) countOutcome(ctx context.Context, source string, outcome Outcome) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.Add(ctx, source, string(outcome)); err != nil {
		log.Debugf("[Billing] Could not count %s outcome %s: %v", source, outcome, err)
	}
}
