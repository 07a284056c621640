package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
)

// Audit actions written by the ledger.
const (
	ActionStockAdded      = "stock_added"
	ActionSaleRecorded    = "sale_recorded"
	ActionSalesImported   = "sales_imported"
	ActionCustomerTxn     = "customer_transaction"
	ActionCouponIssued    = "coupon_issued"
	ActionClaimSubmitted  = "gift_claim_submitted"
	ActionClaimReviewed   = "gift_claim_reviewed"
	ActionCampaignCreated = "gift_campaign_created"
)

const defaultAppendTimeout = 5 * time.Second

// Log appends audit entries after the primary write has committed. Append
// swallows every failure.
type Log struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	timeout time.Duration
}

type LogParams struct {
	Repository Repository
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Timeout    time.Duration
}

func NewLog(params LogParams) (*Log, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultAppendTimeout
	}
	return &Log{
		repo:    params.Repository,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
	}, nil
}

// Append records action for userID. A nil userID marks a system action.
func (l *Log) Append(ctx context.Context, userID *uuid.UUID, action, description string) {
	action = strings.TrimSpace(action)
	if action == "" {
		l.logg.Warn(ctx, "activity entry skipped: empty action")
		return
	}

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	entry := &models.ActivityLog{
		UserID:      userID,
		Action:      action,
		Description: description,
	}
	if err := l.repo.Create(appendCtx, entry); err != nil {
		l.logg.Error(l.logg.WithField(ctx, "action", action), "activity entry dropped", err)
		l.metrics.IncSideEffectFailure("activity")
	}
}
