package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PrepVault/app/models"
)

// DefaultPlans is the catalog shipped with a fresh install. It mirrors the
// seed rows in migrations/.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{Code: "archive", Name: "Question Archive", Category: models.CategoryArchive, PriceMinor: 0, ValidityDays: 365, Status: models.PlanStatusActive, IsFree: true},
		{Code: "materials", Name: "Study Materials", Category: models.CategoryMaterials, PriceMinor: 29900, ValidityDays: 365, Status: models.PlanStatusActive},
		{Code: "combo", Name: "Archive + Materials Combo", Category: models.CategoryCombo, PriceMinor: 49900, ValidityDays: 365, Status: models.PlanStatusActive},
	}
}

// SeedPlans inserts the default plans, leaving existing codes untouched.
func SeedPlans(ctx context.Context, db *gorm.DB) error {
	plans := DefaultPlans()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&plans).Error
}
