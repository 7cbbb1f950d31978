package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PrepVault/app/models"
	"github.com/ManuelReschke/PrepVault/app/repository"
)

const activePlansCacheKey = "billing:plans:active"

// PlanCache is the small key/value surface the catalog needs from a cache.
type PlanCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Catalog is the read-only plan registry.
type Catalog struct {
	repo  repository.PlanRepository
	cache PlanCache
	ttl   time.Duration
}

// NewCatalog builds a catalog. cache may be nil.
func NewCatalog(repo repository.PlanRepository, cache PlanCache, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Catalog{repo: repo, cache: cache, ttl: ttl}
}

// GetByCode returns the plan with the given code or ErrPlanNotFound.
func (c *Catalog) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	code = normalizePlanCode(code)
	if code == "" {
		return nil, ErrPlanNotFound
	}
	plan, err := c.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan %q: %w", code, err)
	}
	return plan, nil
}

// GetByID resolves the plan a payment refers to, including inactive plans.
func (c *Catalog) GetByID(ctx context.Context, id uint) (*models.Plan, error) {
	plan, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan %d: %w", id, err)
	}
	return plan, nil
}

// ListActive returns active plans in insertion order.
func (c *Catalog) ListActive(ctx context.Context) ([]models.Plan, error) {
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, activePlansCacheKey); err == nil && raw != "" {
			var plans []models.Plan
			if err := json.Unmarshal([]byte(raw), &plans); err == nil {
				return plans, nil
			}
		}
	}

	plans, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(plans); err == nil {
			if err := c.cache.Set(ctx, activePlansCacheKey, string(raw), c.ttl); err != nil {
				log.Warnf("[Billing] Could not cache plan list: %v", err)
			}
		}
	}
	return plans, nil
}

func normalizePlanCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
