package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoyaltyCampaign is a coupon definition; the default one is granted on
// loyalty threshold crossings.
type LoyaltyCampaign struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Description *string   `gorm:"column:description;type:text"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *LoyaltyCampaign) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CustomerCoupon is one coupon granted to a customer.
type CustomerCoupon struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	CouponID   uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null"`
	IssuedAt   time.Time  `gorm:"column:issued_at;autoCreateTime"`
	IsUsed     bool       `gorm:"column:is_used;not null;default:false"`
	UsedAt     *time.Time `gorm:"column:used_at"`
}

func (c *CustomerCoupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
