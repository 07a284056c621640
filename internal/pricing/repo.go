package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Repository persists pricing rules keyed by branch and voucher type.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Find(ctx context.Context, branchID uuid.UUID, voucherType enums.VoucherType) (*models.PricingRule, error) {
	var rule models.PricingRule
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND voucher_type = ?", branchID, voucherType).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *Repository) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("voucher_type ASC").
		Find(&rules).Error
	return rules, err
}

func (r *Repository) Upsert(ctx context.Context, rule *models.PricingRule) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}, {Name: "voucher_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_price",
				"sell_price",
				"branch_share",
				"fee_seller_pct",
				"fee_branch_pct",
				"partner_commission_pct",
				"updated_at",
			}),
		}).
		Create(rule).Error
}
