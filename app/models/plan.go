package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PlanStatusActive   = "active"
	PlanStatusInactive = "inactive"
)

// Categories a plan can unlock.
const (
	CategoryArchive   = "archive"
	CategoryMaterials = "materials"
	CategoryCombo     = "combo"
)

// Plan is a purchasable entitlement. Code is the stable identifier clients
// send; price edits never touch grants that were already issued.
type Plan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_plans_code" json:"code" validate:"required,max=50"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Category     string    `gorm:"type:varchar(20);not null;index" json:"category" validate:"oneof=archive materials combo"`
	PriceMinor   int64     `gorm:"not null;default:0" json:"price_minor" validate:"gte=0"`
	ValidityDays int       `gorm:"not null;default:365" json:"validity_days" validate:"gt=0,lte=3650"`
	Status       string    `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"oneof=active inactive"`
	IsFree       FlexBool  `gorm:"not null;default:false" json:"is_free"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsActive reports whether the plan can currently be purchased or used.
func (p *Plan) IsActive() bool {
	return p != nil && p.Status == PlanStatusActive
}

// IsFreePlan treats both the explicit flag and a zero price as free.
func (p *Plan) IsFreePlan() bool {
	return p != nil && (p.IsFree.Bool() || p.PriceMinor == 0)
}
