// Package sales records voucher sales. One sale deducts stock and appends its
// SaleRecord in a single transaction; notifications and audit entries follow
// the commit and never undo it.
package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/revenue"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/payloads"
)

const defaultLowStockThreshold = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

type auditor interface {
	Append(ctx context.Context, userID *uuid.UUID, action, description string)
}

type RecordSaleInput struct {
	PerformerID   uuid.UUID
	PerformerRole enums.Role
	PartnerID     uuid.UUID
	BranchID      uuid.UUID
	SellerID      uuid.UUID
	VoucherType   enums.VoucherType
	Quantity      int
}

// RecordSaleResult carries a nil Split when the branch has no price for the
// voucher type.
type RecordSaleResult struct {
	SaleID         uuid.UUID      `json:"saleId"`
	RemainingStock int            `json:"remainingStock"`
	Split          *revenue.Split `json:"splitBreakdown"`
}

type PreviewInput struct {
	BranchID    uuid.UUID
	VoucherType enums.VoucherType
	Quantity    int
}

type PreviewResult struct {
	Priced bool           `json:"priced"`
	Split  *revenue.Split `json:"splitBreakdown"`
}

// Processor is the sale entry point shared by single sales and imports.
type Processor interface {
	RecordSale(ctx context.Context, input RecordSaleInput) (*RecordSaleResult, error)
	Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error)
	History(ctx context.Context, input HistoryInput) ([]models.SaleRecord, error)
	Sale(ctx context.Context, actorID uuid.UUID, role enums.Role, saleID uuid.UUID) (*models.SaleRecord, error)
}

type ProcessorParams struct {
	DB                txRunner
	Repo              *Repository
	Ledger            *stock.Ledger
	Directory         hierarchy.Directory
	Pricing           pricing.Catalog
	Outbox            outbox.Emitter
	Notifier          notifier
	Audit             auditor
	Metrics           *metrics.LedgerMetrics
	Logger            *logger.Logger
	LowStockThreshold int
}

type processor struct {
	db                txRunner
	repo              *Repository
	ledger            *stock.Ledger
	directory         hierarchy.Directory
	pricing           pricing.Catalog
	outbox            outbox.Emitter
	notifier          notifier
	audit             auditor
	metrics           *metrics.LedgerMetrics
	logg              *logger.Logger
	lowStockThreshold int

	// afterDeduct runs inside the sale transaction between the stock
	// deduction and the record append.
	afterDeduct func(tx *gorm.DB) error
}

func NewProcessor(params ProcessorParams) (Processor, error) {
	p, err := newProcessor(params)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newProcessor(params ProcessorParams) (*processor, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("db client required")
	case params.Repo == nil:
		return nil, errors.New("sales repository required")
	case params.Ledger == nil:
		return nil, errors.New("stock ledger required")
	case params.Directory == nil:
		return nil, errors.New("hierarchy directory required")
	case params.Pricing == nil:
		return nil, errors.New("pricing catalog required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Notifier == nil, params.Audit == nil:
		return nil, errors.New("notifier and audit log required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	threshold := params.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &processor{
		db:                params.DB,
		repo:              params.Repo,
		ledger:            params.Ledger,
		directory:         params.Directory,
		pricing:           params.Pricing,
		outbox:            params.Outbox,
		notifier:          params.Notifier,
		audit:             params.Audit,
		metrics:           params.Metrics,
		logg:              params.Logger,
		lowStockThreshold: threshold,
	}, nil
}

func (p *processor) RecordSale(ctx context.Context, input RecordSaleInput) (*RecordSaleResult, error) {
	res, chain, err := p.recordSale(ctx, input)
	if err != nil {
		p.metrics.IncSaleFailure(string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	p.metrics.ObserveSale(string(input.VoucherType), input.Quantity)
	p.notifyStockLevel(ctx, chain, input.VoucherType, res.RemainingStock)
	p.audit.Append(ctx, actorPtr(input.PerformerID), activity.ActionSaleRecorded,
		fmt.Sprintf("sold %d %s by %s (%s / %s), %d left", input.Quantity, input.VoucherType,
			chain.Seller.Name, chain.Branch.Name, chain.Partner.Name, res.RemainingStock))
	return res, nil
}

func (p *processor) recordSale(ctx context.Context, input RecordSaleInput) (*RecordSaleResult, *hierarchy.Chain, error) {
	chain, err := p.directory.ValidateChain(ctx, input.PartnerID, input.BranchID, input.SellerID)
	if err != nil {
		return nil, nil, err
	}
	if !input.VoucherType.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", input.VoucherType))
	}
	if input.Quantity <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.PerformerRole == enums.RoleLink && input.PerformerID != input.SellerID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "sellers may only record their own sales")
	}

	available, err := p.ledger.Available(ctx, nil, input.SellerID, input.VoucherType)
	if err != nil {
		return nil, nil, err
	}
	if available < input.Quantity {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient %s stock", input.VoucherType)).
			WithDetails(map[string]any{"available": available, "requested": input.Quantity})
	}

	split, err := p.split(ctx, input.BranchID, input.VoucherType, input.Quantity)
	if err != nil {
		return nil, nil, err
	}

	record := models.SaleRecord{
		PerformerID:  input.PerformerID,
		PartnerID:    chain.Partner.ID,
		BranchID:     chain.Branch.ID,
		SellerID:     chain.Seller.ID,
		VoucherType:  input.VoucherType,
		QuantitySold: input.Quantity,
	}
	if split != nil {
		record.FeeSeller = split.FeeSeller
		record.FeeBranch = split.FeeBranch
		record.PartnerCommission = split.PartnerCommission
		record.OwnerRevenue = split.OwnerRevenue
		record.TotalSellerRevenue = split.TotalSellerRevenue
		record.TotalBranchRevenue = split.TotalBranchRevenue
	}

	var remaining int
	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		left, err := p.ledger.DeductStock(ctx, tx, input.SellerID, input.VoucherType, input.Quantity)
		if err != nil {
			return err
		}
		remaining = left
		if p.afterDeduct != nil {
			if err := p.afterDeduct(tx); err != nil {
				return err
			}
		}
		if err := p.repo.WithTx(tx).Create(ctx, &record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append sale record")
		}
		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventSaleRecorded,
			AggregateID: record.ID,
			Actor:       outbox.ActorOf(input.PerformerID, input.PerformerRole),
			Data: payloads.SaleRecordedEvent{
				SaleID:            record.ID,
				PerformerID:       record.PerformerID,
				PartnerID:         record.PartnerID,
				BranchID:          record.BranchID,
				SellerID:          record.SellerID,
				VoucherType:       record.VoucherType,
				QuantitySold:      record.QuantitySold,
				SellerRevenue:     record.TotalSellerRevenue,
				BranchRevenue:     record.TotalBranchRevenue,
				PartnerCommission: record.PartnerCommission,
				OwnerRevenue:      record.OwnerRevenue,
				RemainingStock:    left,
				RecordedAt:        record.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, nil, asInternal(err, "record sale")
	}

	return &RecordSaleResult{SaleID: record.ID, RemainingStock: remaining, Split: split}, chain, nil
}

// split returns nil for unpriced sales. A stored rule that fails validation is
// data corruption, not caller error.
func (p *processor) split(ctx context.Context, branchID uuid.UUID, voucherType enums.VoucherType, qty int) (*revenue.Split, error) {
	rule, err := p.pricing.Lookup(ctx, branchID, voucherType)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}
	split, err := revenue.Calculate(qty, revenue.FromRule(*rule))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("pricing rule for %s/%s", branchID, voucherType))
	}
	return &split, nil
}

func (p *processor) Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	if !input.VoucherType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", input.VoucherType))
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	split, err := p.split(ctx, input.BranchID, input.VoucherType, input.Quantity)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Priced: split != nil, Split: split}, nil
}

func (p *processor) notifyStockLevel(ctx context.Context, chain *hierarchy.Chain, voucherType enums.VoucherType, remaining int) {
	switch {
	case remaining == 0:
		p.notifier.Send(ctx, notifications.Message{
			UserID:   chain.Seller.ID,
			Title:    "Stock depleted",
			Body:     fmt.Sprintf("Your %s stock is empty.", voucherType),
			Severity: enums.NotificationDanger,
			Link:     "/stock",
		})
		p.notifier.Send(ctx, notifications.Message{
			UserID:   chain.Branch.ID,
			Title:    "Seller out of stock",
			Body:     fmt.Sprintf("%s has no %s vouchers left.", chain.Seller.Name, voucherType),
			Severity: enums.NotificationWarning,
			Link:     "/stock",
		})
	case remaining < p.lowStockThreshold:
		p.notifier.Send(ctx, notifications.Message{
			UserID:   chain.Seller.ID,
			Title:    "Low stock",
			Body:     fmt.Sprintf("Only %d %s vouchers left.", remaining, voucherType),
			Severity: enums.NotificationWarning,
			Link:     "/stock",
		})
	}
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func asInternal(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
