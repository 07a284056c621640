package sales

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
)

const maxHistoryLimit = 200

// HistoryInput asks for one seller's sales in [From, To). Zero bounds are open.
type HistoryInput struct {
	ActorID   uuid.UUID
	ActorRole enums.Role
	SellerID  uuid.UUID
	From      time.Time
	To        time.Time
	Limit     int
}

// History lists a seller's sales newest first. Links see their own sales,
// Cabang and MitraCabang nodes see sellers under them, staff see everything.
func (p *processor) History(ctx context.Context, input HistoryInput) ([]models.SaleRecord, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.Limit < 0 || input.Limit > maxHistoryLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
			WithDetails(map[string]any{"max": maxHistoryLimit})
	}
	if !input.From.IsZero() && !input.To.IsZero() && !input.To.After(input.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must be after from")
	}
	if err := p.canViewSeller(ctx, input.ActorID, input.ActorRole, input.SellerID); err != nil {
		return nil, err
	}

	rows, err := p.repo.ListBySeller(ctx, input.SellerID, input.From.UTC(), input.To.UTC(), input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	return rows, nil
}

// Sale returns one sale record if the actor sits on its chain or is staff.
func (p *processor) Sale(ctx context.Context, actorID uuid.UUID, role enums.Role, saleID uuid.UUID) (*models.SaleRecord, error) {
	if saleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	record, err := p.repo.FindByID(ctx, saleID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	if role.IsStaff() {
		return record, nil
	}
	for _, id := range []uuid.UUID{record.SellerID, record.BranchID, record.PartnerID} {
		if id == actorID {
			return record, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sale belongs to another chain")
}

func (p *processor) canViewSeller(ctx context.Context, actorID uuid.UUID, role enums.Role, sellerID uuid.UUID) error {
	if role.IsStaff() || actorID == sellerID {
		return nil
	}
	denied := pkgerrors.New(pkgerrors.CodeForbidden, "seller is outside your network")
	if role == enums.RoleLink {
		return denied
	}

	seller, err := p.directory.Lookup(ctx, sellerID)
	if err != nil {
		return err
	}
	if seller.Role != enums.RoleLink || seller.ParentID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "node is not a seller")
	}
	switch role {
	case enums.RoleCabang:
		if *seller.ParentID == actorID {
			return nil
		}
	case enums.RoleMitraCabang:
		branch, err := p.directory.Lookup(ctx, *seller.ParentID)
		if err != nil {
			return err
		}
		if branch.ParentID != nil && *branch.ParentID == actorID {
			return nil
		}
	}
	return denied
}
