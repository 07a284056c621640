package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// PricingRule prices one voucher type for one branch. Amounts are whole
// currency units; percentages are applied to BasePrice.
type PricingRule struct {
	BranchID             uuid.UUID         `gorm:"column:branch_id;type:uuid;primaryKey"`
	VoucherType          enums.VoucherType `gorm:"column:voucher_type;type:text;primaryKey"`
	BasePrice            int64             `gorm:"column:base_price;not null"`
	SellPrice            int64             `gorm:"column:sell_price;not null"`
	BranchShare          int64             `gorm:"column:branch_share;not null;default:0"`
	FeeSellerPct         decimal.Decimal   `gorm:"column:fee_seller_pct;type:numeric(5,2);not null"`
	FeeBranchPct         decimal.Decimal   `gorm:"column:fee_branch_pct;type:numeric(5,2);not null"`
	PartnerCommissionPct decimal.Decimal   `gorm:"column:partner_commission_pct;type:numeric(5,2);not null"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
