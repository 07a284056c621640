package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

// Summary counts what a load changed.
type Summary struct {
	NodesCreated  int
	NodesExisting int
	PricesStored  int
	StockUnits    int
}

type LoaderParams struct {
	Directory hierarchy.Directory
	Pricing   pricing.Catalog
	Stock     stock.Service
	Logger    *logger.Logger
}

// Loader applies fixtures. Nodes are matched by (role, name, parent), so a
// fixture can be loaded again; opening stock is only added to nodes the
// load itself created.
type Loader struct {
	directory hierarchy.Directory
	pricing   pricing.Catalog
	stock     stock.Service
	logg      *logger.Logger
}

func NewLoader(params LoaderParams) (*Loader, error) {
	switch {
	case params.Directory == nil:
		return nil, errors.New("hierarchy directory required")
	case params.Pricing == nil:
		return nil, errors.New("pricing catalog required")
	case params.Stock == nil:
		return nil, errors.New("stock service required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &Loader{
		directory: params.Directory,
		pricing:   params.Pricing,
		stock:     params.Stock,
		logg:      params.Logger,
	}, nil
}

type lineage struct {
	parent  *uuid.UUID
	partner uuid.UUID
	branch  uuid.UUID
}

func (l *Loader) Load(ctx context.Context, f *Fixture) (Summary, error) {
	var sum Summary
	for _, n := range f.Nodes {
		if err := l.apply(ctx, n, lineage{}, &sum); err != nil {
			return sum, err
		}
	}
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"nodes_created":  sum.NodesCreated,
		"nodes_existing": sum.NodesExisting,
		"prices_stored":  sum.PricesStored,
		"stock_units":    sum.StockUnits,
	}), "seed fixture loaded")
	return sum, nil
}

func (l *Loader) apply(ctx context.Context, n Node, up lineage, sum *Summary) error {
	node, created, err := l.ensureNode(ctx, n, up.parent)
	if err != nil {
		return fmt.Errorf("node %q: %w", n.Name, err)
	}
	if created {
		sum.NodesCreated++
	} else {
		sum.NodesExisting++
	}

	here := lineage{parent: &node.ID, partner: up.partner, branch: up.branch}
	switch node.Role {
	case enums.RoleMitraCabang:
		here.partner = node.ID
	case enums.RoleCabang:
		here.branch = node.ID
		for _, p := range n.Pricing {
			if err := l.storePrice(ctx, node.ID, p); err != nil {
				return fmt.Errorf("pricing %s/%s: %w", n.Name, p.VoucherType, err)
			}
			sum.PricesStored++
		}
	case enums.RoleLink:
		if created {
			units, err := l.openStock(ctx, node.ID, here, n.Stock)
			if err != nil {
				return fmt.Errorf("stock %s: %w", n.Name, err)
			}
			sum.StockUnits += units
		}
	}

	for _, child := range n.Children {
		if err := l.apply(ctx, child, here, sum); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureNode(ctx context.Context, n Node, parent *uuid.UUID) (*models.HierarchyNode, bool, error) {
	existing, err := l.directory.ResolveName(ctx, n.Role, n.Name, parent)
	if err == nil {
		return existing, false, nil
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		return nil, false, err
	}
	node, err := l.directory.Register(ctx, hierarchy.RegisterInput{Name: n.Name, Role: n.Role, ParentID: parent})
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

func (l *Loader) storePrice(ctx context.Context, branchID uuid.UUID, p Price) error {
	seller, branch, partner, err := p.percentages()
	if err != nil {
		return err
	}
	_, err = l.pricing.Upsert(ctx, models.PricingRule{
		BranchID:             branchID,
		VoucherType:          p.VoucherType,
		BasePrice:            p.BasePrice,
		SellPrice:            p.SellPrice,
		BranchShare:          p.BranchShare,
		FeeSellerPct:         seller,
		FeeBranchPct:         branch,
		PartnerCommissionPct: partner,
	})
	return err
}

func (l *Loader) openStock(ctx context.Context, sellerID uuid.UUID, up lineage, amounts map[string]int) (int, error) {
	types := make([]string, 0, len(amounts))
	for vt := range amounts {
		types = append(types, vt)
	}
	sort.Strings(types)

	total := 0
	for _, vt := range types {
		qty := amounts[vt]
		if qty == 0 {
			continue
		}
		if _, err := l.stock.AddStock(ctx, stock.AddStockInput{
			ActorRole:   enums.RoleOwner,
			PartnerID:   up.partner,
			BranchID:    up.branch,
			SellerID:    sellerID,
			VoucherType: enums.VoucherType(vt),
			Amount:      qty,
		}); err != nil {
			return total, err
		}
		total += qty
	}
	return total, nil
}
