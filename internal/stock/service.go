package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

type auditor interface {
	Append(ctx context.Context, userID *uuid.UUID, action, description string)
}

// AddStockInput tops up one seller. The chain must be a valid
// MitraCabang → Cabang → Link path.
type AddStockInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.Role
	PartnerID   uuid.UUID
	BranchID    uuid.UUID
	SellerID    uuid.UUID
	VoucherType enums.VoucherType
	Amount      int
}

type AddStockResult struct {
	SellerID    uuid.UUID         `json:"sellerId"`
	VoucherType enums.VoucherType `json:"voucherType"`
	Quantity    int               `json:"quantity"`
}

type Service interface {
	AddStock(ctx context.Context, input AddStockInput) (*AddStockResult, error)
	ListStock(ctx context.Context, sellerID uuid.UUID) ([]models.VoucherStock, error)
}

type ServiceParams struct {
	DB        txRunner
	Repo      *Repository
	Ledger    *Ledger
	Directory hierarchy.Directory
	Outbox    outbox.Emitter
	Notifier  notifier
	Audit     auditor
	Metrics   *metrics.LedgerMetrics
	Logger    *logger.Logger
}

type service struct {
	db        txRunner
	repo      *Repository
	ledger    *Ledger
	directory hierarchy.Directory
	outbox    outbox.Emitter
	notifier  notifier
	audit     auditor
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, errors.New("db client required")
	}
	if params.Repo == nil || params.Ledger == nil {
		return nil, errors.New("stock repository and ledger required")
	}
	if params.Directory == nil {
		return nil, errors.New("hierarchy directory required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Notifier == nil || params.Audit == nil {
		return nil, errors.New("notifier and audit log required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		ledger:    params.Ledger,
		directory: params.Directory,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) AddStock(ctx context.Context, input AddStockInput) (*AddStockResult, error) {
	if !input.VoucherType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", input.VoucherType))
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.ActorRole == enums.RoleMitraCabang && input.ActorID != input.PartnerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "partners may only stock their own network")
	}

	chain, err := s.directory.ValidateChain(ctx, input.PartnerID, input.BranchID, input.SellerID)
	if err != nil {
		return nil, err
	}

	var quantity int
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		q, err := s.ledger.AddStock(ctx, tx, input.SellerID, input.VoucherType, input.Amount)
		if err != nil {
			return err
		}
		quantity = q
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventStockAdded,
			AggregateID: input.SellerID,
			Actor:       outbox.ActorOf(input.ActorID, input.ActorRole),
			Data: payloads.StockAddedEvent{
				SellerID:    input.SellerID,
				BranchID:    input.BranchID,
				PartnerID:   input.PartnerID,
				VoucherType: input.VoucherType,
				Amount:      input.Amount,
				NewQuantity: q,
			},
		})
	})
	if err != nil {
		return nil, asInternal(err, "add stock")
	}

	s.metrics.ObserveStockAdded(string(input.VoucherType), input.Amount)
	s.notifier.Send(ctx, notifications.Message{
		UserID:   input.SellerID,
		Title:    "Stock received",
		Body:     fmt.Sprintf("%s sent you %d %s vouchers. You now hold %d.", chain.Partner.Name, input.Amount, input.VoucherType, quantity),
		Severity: enums.NotificationSuccess,
		Link:     "/stock",
	})
	s.audit.Append(ctx, actorPtr(input.ActorID), activity.ActionStockAdded,
		fmt.Sprintf("added %d %s to %s (%s / %s)", input.Amount, input.VoucherType, chain.Seller.Name, chain.Branch.Name, chain.Partner.Name))

	return &AddStockResult{SellerID: input.SellerID, VoucherType: input.VoucherType, Quantity: quantity}, nil
}

func (s *service) ListStock(ctx context.Context, sellerID uuid.UUID) ([]models.VoucherStock, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	rows, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock")
	}
	return rows, nil
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
