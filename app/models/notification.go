package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationTypeSystem  = "system"
	NotificationTypePremium = "premium"
)

type Notification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	Type        string         `gorm:"type:varchar(50)" json:"type" validate:"oneof=system premium"`
	Title       string         `gorm:"type:varchar(200)" json:"title"`
	Content     string         `gorm:"type:text" json:"content"`
	IsRead      bool           `gorm:"default:false" json:"is_read"`
	ReferenceID uint           `json:"reference_id"` // plan id for premium grants
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
