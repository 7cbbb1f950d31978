package repository

import (
	"context"
	"strings"

	"github.com/ManuelReschke/PrepVault/app/models"
	"gorm.io/gorm"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Create inserts a plan; the unique index on code rejects duplicates
func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

// GetByID retrieves a plan by its primary key
func (r *planRepository) GetByID(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByCode retrieves a plan by its stable code
func (r *planRepository) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns active plans in insertion order
func (r *planRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PlanStatusActive).
		Order("id ASC").
		Find(&plans).Error
	return plans, err
}
