package entitlements

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PrepVault/app/models"
)

type Category string

const (
	CategoryArchive   Category = models.CategoryArchive
	CategoryMaterials Category = models.CategoryMaterials
	CategoryCombo     Category = models.CategoryCombo
)

// ParseCategory normalizes a stored category name. The second return is false
// for anything outside the three known categories.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryArchive, CategoryMaterials, CategoryCombo:
		return c, true
	default:
		return "", false
	}
}

// CategoryForPlan resolves which ledger pair a plan unlocks.
func CategoryForPlan(p *models.Plan) (Category, bool) {
	if p == nil {
		return "", false
	}
	return ParseCategory(p.Category)
}

// Window is one category's effective state at a point in time.
type Window struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Snapshot is the evaluated ledger for a user.
type Snapshot struct {
	Combo     Window `json:"combo"`
	Archive   Window `json:"archive"`
	Materials Window `json:"materials"`
}

// For returns the window for a category.
func (s Snapshot) For(c Category) Window {
	switch c {
	case CategoryCombo:
		return s.Combo
	case CategoryArchive:
		return s.Archive
	case CategoryMaterials:
		return s.Materials
	default:
		return Window{}
	}
}

// ComputeActive evaluates a grant at now. An active combo grant unlocks both
// archive and materials and its expiry is the one reported for them, whether
// it ends before or after their own expiry.
func ComputeActive(grant *models.AccessGrant, now time.Time) Snapshot {
	if grant == nil {
		return Snapshot{}
	}

	combo := pairActive(grant.ComboUnlocked, grant.ComboExpiresAt, now)
	snap := Snapshot{
		Combo: Window{Active: combo, ExpiresAt: grant.ComboExpiresAt},
	}
	if combo {
		snap.Archive = Window{Active: true, ExpiresAt: grant.ComboExpiresAt}
		snap.Materials = Window{Active: true, ExpiresAt: grant.ComboExpiresAt}
		return snap
	}

	snap.Archive = Window{
		Active:    pairActive(grant.ArchiveUnlocked, grant.ArchiveExpiresAt, now),
		ExpiresAt: grant.ArchiveExpiresAt,
	}
	snap.Materials = Window{
		Active:    pairActive(grant.MaterialsUnlocked, grant.MaterialsExpiresAt, now),
		ExpiresAt: grant.MaterialsExpiresAt,
	}
	return snap
}

func pairActive(unlocked models.FlexBool, expiresAt *time.Time, now time.Time) bool {
	return unlocked.Bool() && expiresAt != nil && expiresAt.After(now)
}
