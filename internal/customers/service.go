// Package customers tracks end buyers of Link sellers and the loyalty coupons
// their purchases earn.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/payloads"
)

const (
	defaultLoyaltyThreshold = 10
	singleDefaultIndex      = "ux_loyalty_campaigns_single_default"
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

type CreateCustomerInput struct {
	SellerID uuid.UUID
	Name     string
	Address  *string
	Phone    *string
}

type TransactionInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.Role
	SellerID    uuid.UUID
	CustomerID  uuid.UUID
	VoucherType enums.VoucherType
	Quantity    int
}

type TransactionResult struct {
	IssuedCoupon  bool       `json:"issuedCoupon"`
	CouponID      *uuid.UUID `json:"couponId,omitempty"`
	CumulativeQty int        `json:"cumulativeQty"`
}

type CampaignInput struct {
	ActorID     uuid.UUID
	Name        string
	Description *string
	IsDefault   bool
}

type RedeemInput struct {
	SellerID   uuid.UUID
	CustomerID uuid.UUID
	GrantID    uuid.UUID
}

// Service is the customer ledger and loyalty engine.
type Service interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	RecordTransaction(ctx context.Context, input TransactionInput) (*TransactionResult, error)
	CreateLoyaltyCampaign(ctx context.Context, input CampaignInput) (*models.LoyaltyCampaign, error)
	RedeemCoupon(ctx context.Context, input RedeemInput) (*models.CustomerCoupon, error)
	ListCoupons(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerCoupon, error)
	ListTransactions(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerTransaction, error)
}

type ServiceParams struct {
	DB               txRunner
	Repo             *Repository
	Directory        hierarchy.Directory
	Outbox           outbox.Emitter
	Notifier         notifier
	Audit            auditor
	Metrics          *metrics.LedgerMetrics
	Logger           *logger.Logger
	LoyaltyThreshold int
	Clock            func() time.Time
}

type service struct {
	db        txRunner
	repo      *Repository
	directory hierarchy.Directory
	outbox    outbox.Emitter
	notifier  notifier
	audit     auditor
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	threshold int
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("db client required")
	case params.Repo == nil:
		return nil, errors.New("customer repository required")
	case params.Directory == nil:
		return nil, errors.New("hierarchy directory required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Notifier == nil, params.Audit == nil:
		return nil, errors.New("notifier and audit log required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	threshold := params.LoyaltyThreshold
	if threshold <= 0 {
		threshold = defaultLoyaltyThreshold
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		directory: params.Directory,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      params.Logger,
		threshold: threshold,
		now:       clock,
	}, nil
}

func (s *service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	seller, err := s.directory.Lookup(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}
	if seller.Role != enums.RoleLink {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is not a Link seller", seller.Name))
	}

	customer := &models.Customer{
		SellerID: seller.ID,
		Name:     name,
		Address:  trimmed(input.Address),
		Phone:    trimmed(input.Phone),
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer")
	}
	return customer, nil
}

func (s *service) RecordTransaction(ctx context.Context, input TransactionInput) (*TransactionResult, error) {
	if !input.VoucherType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", input.VoucherType))
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	customer, err := s.ownedCustomer(ctx, input.SellerID, input.CustomerID)
	if err != nil {
		return nil, err
	}

	var (
		result   TransactionResult
		campaign *models.LoyaltyCampaign
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AppendTransaction(ctx, &models.CustomerTransaction{
			CustomerID:  customer.ID,
			SellerID:    customer.SellerID,
			VoucherType: input.VoucherType,
			Qty:         input.Quantity,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append customer transaction")
		}

		total, err := repo.AddPurchaseQty(ctx, customer.ID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase total")
		}
		result.CumulativeQty = total
		if !crossesThreshold(total-input.Quantity, total, s.threshold) {
			return nil
		}

		campaign, err = repo.FindDefaultCampaign(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default loyalty campaign")
		}
		if campaign == nil {
			s.logg.Warn(ctx, fmt.Sprintf("customer %s crossed loyalty threshold but no default campaign is active", customer.ID))
			return nil
		}

		grant := &models.CustomerCoupon{CustomerID: customer.ID, CouponID: campaign.ID}
		if err := repo.CreateCoupon(ctx, grant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "grant coupon")
		}
		result.IssuedCoupon = true
		result.CouponID = &grant.ID

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventCustomerCouponIssued,
			AggregateID: grant.ID,
			Actor:       outbox.ActorOf(input.ActorID, input.ActorRole),
			Data: payloads.CustomerCouponIssuedEvent{
				CustomerID:    customer.ID,
				CouponID:      grant.ID,
				CampaignName:  campaign.Name,
				CumulativeQty: total,
			},
		})
	})
	if err != nil {
		return nil, asInternal(err, "record customer transaction")
	}

	s.audit.Append(ctx, actorPtr(input.ActorID), activity.ActionCustomerTxn,
		fmt.Sprintf("%s bought %d %s, total %d", customer.Name, input.Quantity, input.VoucherType, result.CumulativeQty))
	if result.IssuedCoupon {
		s.metrics.IncCouponIssued()
		s.notifier.Send(ctx, notifications.Message{
			UserID:   customer.SellerID,
			Title:    "Coupon issued",
			Body:     fmt.Sprintf("%s earned a %s coupon after %d vouchers.", customer.Name, campaign.Name, result.CumulativeQty),
			Severity: enums.NotificationSuccess,
			Link:     fmt.Sprintf("/customers/%s", customer.ID),
		})
		s.audit.Append(ctx, actorPtr(input.ActorID), activity.ActionCouponIssued,
			fmt.Sprintf("coupon %s granted to %s", campaign.Name, customer.Name))
	}
	return &result, nil
}

// crossesThreshold reports whether a purchase moved the total into a new
// multiple of threshold. Jumping several multiples at once still counts once.
func crossesThreshold(before, after, threshold int) bool {
	return before/threshold < after/threshold
}

func (s *service) CreateLoyaltyCampaign(ctx context.Context, input CampaignInput) (*models.LoyaltyCampaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign name required")
	}

	campaign := &models.LoyaltyCampaign{
		Name:        name,
		Description: trimmed(input.Description),
		IsDefault:   input.IsDefault,
		Active:      true,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault {
			exists, err := repo.LockDefaultCampaigns(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check default campaign")
			}
			if exists {
				return pkgerrors.New(pkgerrors.CodeAlreadyExists, "a default loyalty campaign already exists")
			}
		}
		if err := repo.CreateCampaign(ctx, campaign); err != nil {
			if db.IsUniqueViolation(err, singleDefaultIndex) {
				return pkgerrors.Wrap(pkgerrors.CodeAlreadyExists, err, "a default loyalty campaign already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create loyalty campaign")
		}
		return nil
	})
	if err != nil {
		return nil, asInternal(err, "create loyalty campaign")
	}

	s.audit.Append(ctx, actorPtr(input.ActorID), activity.ActionCampaignCreated,
		fmt.Sprintf("loyalty campaign %q created (default=%t)", campaign.Name, campaign.IsDefault))
	return campaign, nil
}

func (s *service) RedeemCoupon(ctx context.Context, input RedeemInput) (*models.CustomerCoupon, error) {
	if _, err := s.ownedCustomer(ctx, input.SellerID, input.CustomerID); err != nil {
		return nil, err
	}

	var coupon *models.CustomerCoupon
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindCoupon(ctx, input.CustomerID, input.GrantID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
		}
		if found.IsUsed {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "coupon already used")
		}
		usedAt := s.now()
		ok, err := repo.MarkCouponUsed(ctx, found.ID, usedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem coupon")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "coupon already used")
		}
		found.IsUsed = true
		found.UsedAt = &usedAt
		coupon = found
		return nil
	})
	if err != nil {
		return nil, asInternal(err, "redeem coupon")
	}
	return coupon, nil
}

func (s *service) ListCoupons(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerCoupon, error) {
	if _, err := s.ownedCustomer(ctx, sellerID, customerID); err != nil {
		return nil, err
	}
	coupons, err := s.repo.ListCoupons(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	return coupons, nil
}

// ListTransactions returns the customer's purchases, oldest first, so the
// running total can be replayed against the cumulative counter.
func (s *service) ListTransactions(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerTransaction, error) {
	if _, err := s.ownedCustomer(ctx, sellerID, customerID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customer transactions")
	}
	return rows, nil
}

func (s *service) ownedCustomer(ctx context.Context, sellerID, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if customer.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer belongs to another seller")
	}
	return customer, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
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
