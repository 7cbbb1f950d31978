package models

import "time"

// AccessGrant holds one user's three independently expiring grants. Rows are
// created lazily and never deleted; expiry is what revokes access.
type AccessGrant struct {
	ID                 uint       `gorm:"primaryKey" json:"-"`
	UserID             uint       `gorm:"not null;uniqueIndex:ux_access_grants_user" json:"user_id"`
	ArchiveUnlocked    FlexBool   `gorm:"not null;default:false" json:"archive_unlocked"`
	ArchiveExpiresAt   *time.Time `gorm:"type:datetime;default:null" json:"archive_expires_at,omitempty"`
	MaterialsUnlocked  FlexBool   `gorm:"not null;default:false" json:"materials_unlocked"`
	MaterialsExpiresAt *time.Time `gorm:"type:datetime;default:null" json:"materials_expires_at,omitempty"`
	ComboUnlocked      FlexBool   `gorm:"not null;default:false" json:"combo_unlocked"`
	ComboExpiresAt     *time.Time `gorm:"type:datetime;default:null" json:"combo_expires_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
