package payloads

import (
	"time"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/google/uuid"
)

// SaleRecordedEvent mirrors a committed sale and its revenue split.
type SaleRecordedEvent struct {
	SaleID            uuid.UUID         `json:"sale_id"`
	PerformerID       uuid.UUID         `json:"performer_id"`
	PartnerID         uuid.UUID         `json:"partner_id"`
	BranchID          uuid.UUID         `json:"branch_id"`
	SellerID          uuid.UUID         `json:"seller_id"`
	VoucherType       enums.VoucherType `json:"voucher_type"`
	QuantitySold      int               `json:"quantity_sold"`
	SellerRevenue     int64             `json:"seller_revenue"`
	BranchRevenue     int64             `json:"branch_revenue"`
	PartnerCommission int64             `json:"partner_commission"`
	OwnerRevenue      int64             `json:"owner_revenue"`
	RemainingStock    int               `json:"remaining_stock"`
	RecordedAt        time.Time         `json:"recorded_at"`
}

// StockAddedEvent is emitted when a partner tops up a seller.
type StockAddedEvent struct {
	SellerID    uuid.UUID         `json:"seller_id"`
	BranchID    uuid.UUID         `json:"branch_id"`
	PartnerID   uuid.UUID         `json:"partner_id"`
	VoucherType enums.VoucherType `json:"voucher_type"`
	Amount      int               `json:"amount"`
	NewQuantity int               `json:"new_quantity"`
}

// CustomerCouponIssuedEvent signals a loyalty threshold crossing.
type CustomerCouponIssuedEvent struct {
	CustomerID    uuid.UUID `json:"customer_id"`
	CouponID      uuid.UUID `json:"coupon_id"`
	CampaignName  string    `json:"campaign_name"`
	CumulativeQty int       `json:"cumulative_qty"`
}

// GiftClaimSubmittedEvent reports a new prize claim awaiting review.
type GiftClaimSubmittedEvent struct {
	ClaimID    uuid.UUID `json:"claim_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	UserID     uuid.UUID `json:"user_id"`
	Position   int       `json:"position"`
	Prize      string    `json:"prize"`
}

// GiftClaimReviewedEvent reports an approval or rejection.
type GiftClaimReviewedEvent struct {
	ClaimID    uuid.UUID         `json:"claim_id"`
	CampaignID uuid.UUID         `json:"campaign_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Status     enums.ClaimStatus `json:"status"`
	ReviewedBy uuid.UUID         `json:"reviewed_by"`
}
