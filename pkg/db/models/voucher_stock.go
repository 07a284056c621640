package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// VoucherStock holds the sellable quantity a Link owns for one voucher type.
type VoucherStock struct {
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;primaryKey"`
	VoucherType enums.VoucherType `gorm:"column:voucher_type;type:text;primaryKey"`
	Quantity    int               `gorm:"column:quantity;not null;default:0;check:chk_voucher_stocks_quantity,quantity >= 0"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
