package models

// All lists every persisted model, in dependency order, for test schemas
// built with AutoMigrate.
func All() []any {
	return []any{
		&HierarchyNode{},
		&VoucherStock{},
		&PricingRule{},
		&SaleRecord{},
		&Customer{},
		&CustomerTransaction{},
		&LoyaltyCampaign{},
		&CustomerCoupon{},
		&GiftCampaign{},
		&GiftClaim{},
		&Notification{},
		&ActivityLog{},
		&OutboxEvent{},
		&OutboxDeadLetter{},
	}
}
