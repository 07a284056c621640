// Package seed loads a reseller network fixture (nodes, branch pricing and
// opening stock) from YAML into the ledger.
package seed

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Fixture is the root of a seed file.
type Fixture struct {
	Nodes []Node `yaml:"nodes"`
}

// Node is one hierarchy node with its subtree. Pricing applies to Cabang
// nodes and Stock to Link nodes.
type Node struct {
	Name     string         `yaml:"name"`
	Role     enums.Role     `yaml:"role"`
	Pricing  []Price        `yaml:"pricing,omitempty"`
	Stock    map[string]int `yaml:"stock,omitempty"`
	Children []Node         `yaml:"children,omitempty"`
}

// Price percentages are strings so they round-trip without float error.
type Price struct {
	VoucherType          enums.VoucherType `yaml:"voucherType"`
	BasePrice            int64             `yaml:"basePrice"`
	SellPrice            int64             `yaml:"sellPrice"`
	BranchShare          int64             `yaml:"branchShare"`
	FeeSellerPct         string            `yaml:"feeSellerPct"`
	FeeBranchPct         string            `yaml:"feeBranchPct"`
	PartnerCommissionPct string            `yaml:"partnerCommissionPct"`
}

// Parse decodes a fixture and rejects unknown keys.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Nodes) == 0 {
		return fmt.Errorf("fixture has no nodes")
	}
	var walk func(nodes []Node, path string) error
	walk = func(nodes []Node, path string) error {
		for _, n := range nodes {
			where := path + "/" + n.Name
			if !n.Role.IsValid() {
				return fmt.Errorf("%s: invalid role %q", where, n.Role)
			}
			if len(n.Pricing) > 0 && n.Role != enums.RoleCabang {
				return fmt.Errorf("%s: pricing only applies to %s nodes", where, enums.RoleCabang)
			}
			if len(n.Stock) > 0 && n.Role != enums.RoleLink {
				return fmt.Errorf("%s: stock only applies to %s nodes", where, enums.RoleLink)
			}
			for vt, qty := range n.Stock {
				if _, err := enums.ParseVoucherType(vt); err != nil {
					return fmt.Errorf("%s: %w", where, err)
				}
				if qty < 0 {
					return fmt.Errorf("%s: negative stock for %s", where, vt)
				}
			}
			for _, p := range n.Pricing {
				if _, _, _, err := p.percentages(); err != nil {
					return fmt.Errorf("%s: %w", where, err)
				}
			}
			if err := walk(n.Children, where); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(f.Nodes, "")
}

func (p Price) percentages() (seller, branch, partner decimal.Decimal, err error) {
	if seller, err = decimal.NewFromString(p.FeeSellerPct); err != nil {
		return seller, branch, partner, fmt.Errorf("feeSellerPct %q: %w", p.FeeSellerPct, err)
	}
	if branch, err = decimal.NewFromString(p.FeeBranchPct); err != nil {
		return seller, branch, partner, fmt.Errorf("feeBranchPct %q: %w", p.FeeBranchPct, err)
	}
	if partner, err = decimal.NewFromString(p.PartnerCommissionPct); err != nil {
		return seller, branch, partner, fmt.Errorf("partnerCommissionPct %q: %w", p.PartnerCommissionPct, err)
	}
	return seller, branch, partner, nil
}
