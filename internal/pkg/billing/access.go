package billing

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/PrepVault/internal/pkg/entitlements"
)

// RoleAdmin bypasses every premium check.
const RoleAdmin = "admin"

// AccessStatus reports the user's active windows. A user without a ledger row
// gets one created with everything locked.
func (s *Service) AccessStatus(ctx context.Context, userID uint) (entitlements.Snapshot, error) {
	if userID == 0 {
		return entitlements.Snapshot{}, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	grant, err := s.ledger.Ensure(ctx, userID)
	if err != nil {
		return entitlements.Snapshot{}, fmt.Errorf("load access grant for user %d: %w", userID, err)
	}
	return entitlements.ComputeActive(grant, s.now()), nil
}

// HasAccess answers whether the user may use content sold under planCode.
// Admins always may, free active plans are open to everyone and otherwise the
// plan's category window must be active (combo covers every category).
func (s *Service) HasAccess(ctx context.Context, userID uint, role, planCode string) (bool, error) {
	if role == RoleAdmin {
		return true, nil
	}
	plan, err := s.catalog.GetByCode(ctx, planCode)
	if err != nil {
		return false, err
	}
	if plan.IsActive() && plan.IsFreePlan() {
		return true, nil
	}
	category, ok := entitlements.CategoryForPlan(plan)
	if !ok {
		return false, fmt.Errorf("plan %q has unknown category %q", plan.Code, plan.Category)
	}
	if userID == 0 {
		return false, nil
	}
	snap, err := s.AccessStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return snap.For(category).Active, nil
}
