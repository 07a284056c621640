package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/types"
)

// GiftCampaign rewards the top sellers of one role over a period.
type GiftCampaign struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name              string               `gorm:"column:name;type:text;not null"`
	TargetRole        enums.Role           `gorm:"column:target_role;type:text;not null"`
	MinSalesThreshold int                  `gorm:"column:min_sales_threshold;not null;default:0"`
	PeriodStart       time.Time            `gorm:"column:period_start;not null"`
	PeriodEnd         time.Time            `gorm:"column:period_end;not null"`
	WinnerCount       int                  `gorm:"column:winner_count;not null"`
	Prizes            types.PrizeTable     `gorm:"column:prizes;type:jsonb;not null"`
	Status            enums.CampaignStatus `gorm:"column:status;type:text;not null"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *GiftCampaign) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// GiftClaim is a winner's request to receive a campaign prize.
type GiftClaim struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CampaignID       uuid.UUID         `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:ux_gift_claims_campaign_user"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_gift_claims_campaign_user"`
	Position         int               `gorm:"column:position;not null"`
	PrizeReceived    string            `gorm:"column:prize_received;type:text;not null"`
	Status           enums.ClaimStatus `gorm:"column:status;type:text;not null"`
	SalesAtClaimTime int               `gorm:"column:sales_at_claim_time;not null"`
	ReportedQty      int               `gorm:"column:reported_qty;not null;default:0"`
	ReviewedBy       *uuid.UUID        `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt       *time.Time        `gorm:"column:reviewed_at"`
	Note             *string           `gorm:"column:note;type:text"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (c *GiftClaim) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
