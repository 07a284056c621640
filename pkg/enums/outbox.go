package enums

import "fmt"

// OutboxAggregateType names the ledger entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateSaleRecord     OutboxAggregateType = "sale_record"
	AggregateVoucherStock   OutboxAggregateType = "voucher_stock"
	AggregateCustomerCoupon OutboxAggregateType = "customer_coupon"
	AggregateGiftClaim      OutboxAggregateType = "gift_claim"
)

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventSaleRecorded         OutboxEventType = "sale_recorded"
	EventStockAdded           OutboxEventType = "stock_added"
	EventCustomerCouponIssued OutboxEventType = "customer_coupon_issued"
	EventGiftClaimSubmitted   OutboxEventType = "gift_claim_submitted"
	EventGiftClaimReviewed    OutboxEventType = "gift_claim_reviewed"
)

// Every event belongs to exactly one aggregate.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventSaleRecorded:         AggregateSaleRecord,
	EventStockAdded:           AggregateVoucherStock,
	EventCustomerCouponIssued: AggregateCustomerCoupon,
	EventGiftClaimSubmitted:   AggregateGiftClaim,
	EventGiftClaimReviewed:    AggregateGiftClaim,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for, or "" when e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

func (a OutboxAggregateType) IsValid() bool {
	for _, known := range eventAggregates {
		if known == a {
			return true
		}
	}
	return false
}

// DeadLetterReason records why the relay stopped retrying an outbox row.
type DeadLetterReason string

const (
	// DeadLetterMaxAttempts: the broker kept failing until the attempt ceiling.
	DeadLetterMaxAttempts DeadLetterReason = "max_attempts"
	// DeadLetterPermanent: the row can never be delivered as stored.
	DeadLetterPermanent DeadLetterReason = "non_retryable"
)

func (r DeadLetterReason) IsValid() bool {
	return r == DeadLetterMaxAttempts || r == DeadLetterPermanent
}
