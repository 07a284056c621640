package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Customer is an end buyer owned by a single Link seller.
type Customer struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID              uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name                  string    `gorm:"column:name;type:text;not null"`
	Address               *string   `gorm:"column:address;type:text"`
	Phone                 *string   `gorm:"column:phone;type:text"`
	CumulativePurchaseQty int       `gorm:"column:cumulative_purchase_qty;not null;default:0"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CustomerTransaction records one purchase by a customer.
type CustomerTransaction struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID  uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	VoucherType enums.VoucherType `gorm:"column:voucher_type;type:text;not null"`
	Qty         int               `gorm:"column:qty;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (t *CustomerTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
