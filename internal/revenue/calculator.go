// Package revenue splits a sale's gross amount between the reseller tiers.
package revenue

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)

	// ErrInvalidPricing reports parameters that break the pricing rule invariant.
	ErrInvalidPricing = errors.New("invalid pricing parameters")
)

// Pricing carries the per-unit parameters of one pricing rule.
type Pricing struct {
	BasePrice            int64
	SellPrice            int64
	BranchShare          int64
	FeeSellerPct         decimal.Decimal
	FeeBranchPct         decimal.Decimal
	PartnerCommissionPct decimal.Decimal
}

// Split is the rounded per-party breakdown for a whole sale.
type Split struct {
	FeeSeller          int64 `json:"feeSeller"`
	FeeBranch          int64 `json:"feeBranch"`
	PartnerCommission  int64 `json:"partnerCommission"`
	OwnerRevenue       int64 `json:"ownerRevenue"`
	TotalSellerRevenue int64 `json:"totalSellerRevenue"`
	TotalBranchRevenue int64 `json:"totalBranchRevenue"`
}

// Gross is the sum of all four parties.
func (s Split) Gross() int64 {
	return s.TotalSellerRevenue + s.TotalBranchRevenue + s.PartnerCommission + s.OwnerRevenue
}

// FromRule lifts a stored rule into calculator input.
func FromRule(rule models.PricingRule) Pricing {
	return Pricing{
		BasePrice:            rule.BasePrice,
		SellPrice:            rule.SellPrice,
		BranchShare:          rule.BranchShare,
		FeeSellerPct:         rule.FeeSellerPct,
		FeeBranchPct:         rule.FeeBranchPct,
		PartnerCommissionPct: rule.PartnerCommissionPct,
	}
}

// Validate checks sellPrice > basePrice > 0, 0 <= branchShare <= sellPrice,
// every percentage in [0,100] and their sum at most 100.
func (p Pricing) Validate() error {
	if p.BasePrice <= 0 {
		return fmt.Errorf("%w: base price must be positive", ErrInvalidPricing)
	}
	if p.SellPrice <= p.BasePrice {
		return fmt.Errorf("%w: sell price must exceed base price", ErrInvalidPricing)
	}
	if p.BranchShare < 0 || p.BranchShare > p.SellPrice {
		return fmt.Errorf("%w: branch share must be within [0, sell price]", ErrInvalidPricing)
	}
	sum := decimal.Zero
	for _, pct := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"fee seller", p.FeeSellerPct},
		{"fee branch", p.FeeBranchPct},
		{"partner commission", p.PartnerCommissionPct},
	} {
		if pct.value.IsNegative() || pct.value.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s percentage must be within [0, 100]", ErrInvalidPricing, pct.name)
		}
		sum = sum.Add(pct.value)
	}
	if sum.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentages sum to %s", ErrInvalidPricing, sum.String())
	}
	return nil
}

// Calculate splits qty units sold at p. Per-unit amounts stay exact and are
// rounded half-up only after multiplying by qty.
func Calculate(qty int, p Pricing) (Split, error) {
	if qty <= 0 {
		return Split{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidPricing)
	}
	if err := p.Validate(); err != nil {
		return Split{}, err
	}

	hp := decimal.NewFromInt(p.BasePrice)
	hj := decimal.NewFromInt(p.SellPrice)
	sh := decimal.NewFromInt(p.BranchShare)
	q := decimal.NewFromInt(int64(qty))

	feeSeller := hp.Mul(p.FeeSellerPct).Div(hundred)
	feeBranch := hp.Mul(p.FeeBranchPct).Div(hundred)
	partner := hp.Mul(p.PartnerCommissionPct).Div(hundred)

	seller := hj.Sub(hp).Sub(sh).Add(feeSeller)
	branch := sh.Add(feeBranch)
	owner := hp.Sub(feeSeller.Add(feeBranch).Add(partner))

	return Split{
		FeeSeller:          roundTotal(feeSeller, q),
		FeeBranch:          roundTotal(feeBranch, q),
		PartnerCommission:  roundTotal(partner, q),
		OwnerRevenue:       roundTotal(owner, q),
		TotalSellerRevenue: roundTotal(seller, q),
		TotalBranchRevenue: roundTotal(branch, q),
	}, nil
}

func roundTotal(perUnit, qty decimal.Decimal) int64 {
	return perUnit.Mul(qty).Add(half).Floor().IntPart()
}
