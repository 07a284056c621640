// Package pricing serves the per-branch voucher price list.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/internal/revenue"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
)

// Catalog answers pricing lookups. A missing rule is not an error: Lookup
// returns (nil, nil) and the sale is recorded quantity-only.
type Catalog interface {
	Lookup(ctx context.Context, branchID uuid.UUID, voucherType enums.VoucherType) (*models.PricingRule, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID) ([]models.PricingRule, error)
	Upsert(ctx context.Context, rule models.PricingRule) (*models.PricingRule, error)
}

type catalog struct {
	repo *Repository
}

func NewCatalog(repo *Repository) (Catalog, error) {
	if repo == nil {
		return nil, errors.New("pricing repository required")
	}
	return &catalog{repo: repo}, nil
}

func (c *catalog) Lookup(ctx context.Context, branchID uuid.UUID, voucherType enums.VoucherType) (*models.PricingRule, error) {
	rule, err := c.repo.Find(ctx, branchID, voucherType)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pricing rule")
	}
	return rule, nil
}

func (c *catalog) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]models.PricingRule, error) {
	rules, err := c.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pricing rules")
	}
	return rules, nil
}

// Upsert validates the rule before storing it; broken rules never reach the table.
func (c *catalog) Upsert(ctx context.Context, rule models.PricingRule) (*models.PricingRule, error) {
	if rule.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	if !rule.VoucherType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", rule.VoucherType))
	}
	if err := revenue.FromRule(rule).Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing rule")
	}
	if err := c.repo.Upsert(ctx, &rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store pricing rule")
	}
	return &rule, nil
}
