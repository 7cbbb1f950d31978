package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PrepVault/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook journal repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Record inserts the delivery unless (provider, provider_event_id) already
// exists, in which case the delivery counter is bumped. It reports whether a
// new row was created and returns the stored row.
func (r *webhookEventRepository) Record(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	if !created {
		if err := db.Model(&models.PaymentWebhookEvent{}).
			Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			UpdateColumn("deliveries", gorm.Expr("deliveries + 1")).Error; err != nil {
			return false, nil, err
		}
	}

	var stored models.PaymentWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkProcessed stamps the delivery as handled and stores an optional error
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.PaymentWebhookEvent{}).
		Where("id = ?", id).
		Select("processed_at", "processing_error").
		Updates(&models.PaymentWebhookEvent{ProcessedAt: &now, ProcessingError: processingError}).Error
}

// ListRecent returns the latest deliveries without their payloads
func (r *webhookEventRepository) ListRecent(ctx context.Context, limit int) ([]models.PaymentWebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.PaymentWebhookEvent
	err := r.db.WithContext(ctx).
		Omit("payload_json").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
