package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// SaleRecord is the append-only row written for every committed sale. The
// partner/branch/seller chain is stored so rollups never re-walk the hierarchy.
type SaleRecord struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	PerformerID        uuid.UUID         `gorm:"column:performer_id;type:uuid;not null"`
	PartnerID          uuid.UUID         `gorm:"column:partner_id;type:uuid;not null"`
	BranchID           uuid.UUID         `gorm:"column:branch_id;type:uuid;not null"`
	SellerID           uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	VoucherType        enums.VoucherType `gorm:"column:voucher_type;type:text;not null"`
	QuantitySold       int               `gorm:"column:quantity_sold;not null"`
	FeeSeller          int64             `gorm:"column:fee_seller;not null;default:0"`
	FeeBranch          int64             `gorm:"column:fee_branch;not null;default:0"`
	PartnerCommission  int64             `gorm:"column:partner_commission;not null;default:0"`
	OwnerRevenue       int64             `gorm:"column:owner_revenue;not null;default:0"`
	TotalSellerRevenue int64             `gorm:"column:total_seller_revenue;not null;default:0"`
	TotalBranchRevenue int64             `gorm:"column:total_branch_revenue;not null;default:0"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (s *SaleRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
