package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PrepVault/app/models"
	"github.com/ManuelReschke/PrepVault/app/repository"
	"github.com/ManuelReschke/PrepVault/internal/pkg/entitlements"
)

// Granter extends the access ledger after a successful purchase. It is called
// at most once per payment because callers only reach it after winning the
// pending->paid transition, so it does not look at payment state itself.
type Granter struct {
	grants        repository.AccessGrantRepository
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewGranter(grants repository.AccessGrantRepository, notifications repository.NotificationRepository, now func() time.Time) *Granter {
	if now == nil {
		now = time.Now
	}
	return &Granter{grants: grants, notifications: notifications, now: now}
}

// Grant unlocks the plan's category for validityDays from now and returns the
// new expiry. Notification failures are logged and do not undo the grant.
func (g *Granter) Grant(ctx context.Context, userID uint, plan *models.Plan) (time.Time, error) {
	category, ok := entitlements.CategoryForPlan(plan)
	if !ok {
		return time.Time{}, fmt.Errorf("plan %q has unknown category %q", plan.Code, plan.Category)
	}
	if plan.ValidityDays <= 0 {
		return time.Time{}, fmt.Errorf("plan %q has no validity period", plan.Code)
	}

	if _, err := g.grants.Ensure(ctx, userID); err != nil {
		return time.Time{}, fmt.Errorf("ensure access grant for user %d: %w", userID, err)
	}

	expiresAt := g.now().AddDate(0, 0, plan.ValidityDays)
	if err := g.grants.Apply(ctx, userID, repository.GrantUpdate{
		Category:  string(category),
		ExpiresAt: expiresAt,
	}); err != nil {
		return time.Time{}, fmt.Errorf("apply %s grant for user %d: %w", category, userID, err)
	}
	log.Infof("[Grant] user=%d plan=%s category=%s expires=%s", userID, plan.Code, category, expiresAt.Format(time.RFC3339))

	g.notify(ctx, userID, plan, expiresAt)
	return expiresAt, nil
}

func (g *Granter) notify(ctx context.Context, userID uint, plan *models.Plan, expiresAt time.Time) {
	if g.notifications == nil {
		return
	}
	n := &models.Notification{
		UserID:      userID,
		Type:        models.NotificationTypePremium,
		Title:       "Premium access unlocked",
		Content:     fmt.Sprintf("%s is unlocked until %s.", plan.Name, expiresAt.Format("02 Jan 2006")),
		ReferenceID: plan.ID,
	}
	if err := g.notifications.Create(ctx, n); err != nil {
		log.Warnf("[Grant] Notification for user %d failed: %v", userID, err)
	}
}
