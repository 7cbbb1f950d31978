package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PrepVault/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accessGrantRepository implements the AccessGrantRepository interface
type accessGrantRepository struct {
	db *gorm.DB
}

// NewAccessGrantRepository creates a new access grant repository instance
func NewAccessGrantRepository(db *gorm.DB) AccessGrantRepository {
	return &accessGrantRepository{db: db}
}

// Ensure returns the user's grant row, creating an all-locked row if absent.
// Concurrent callers converge on the same row through the unique user index.
func (r *accessGrantRepository) Ensure(ctx context.Context, userID uint) (*models.AccessGrant, error) {
	db := r.db.WithContext(ctx)
	grant := &models.AccessGrant{UserID: userID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(grant).Error; err != nil {
		return nil, err
	}

	var stored models.AccessGrant
	if err := db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// Apply unlocks the category named by u. Only that category's columns are
// written. The row must exist; callers run Ensure first.
func (r *accessGrantRepository) Apply(ctx context.Context, userID uint, u GrantUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	cols, row := u.columns(time.Now())
	// No RowsAffected check: MySQL reports changed rows, so rewriting identical
	// values within the same second reads as zero. Ensure already created the row.
	return r.db.WithContext(ctx).
		Model(&models.AccessGrant{}).
		Where("user_id = ?", userID).
		Select(cols).
		Updates(&row).Error
}
