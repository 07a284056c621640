// Package campaigns ranks sellers over a campaign period and runs the gift
// claim workflow. Ranks are recomputed from sale records on every read.
package campaigns

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
	"github.com/angelmondragon/vouchernet-backend/pkg/types"
)

// ClaimStatusNone marks a leaderboard winner who has not claimed.
const ClaimStatusNone = "none"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

type auditor interface {
	Append(ctx context.Context, userID *uuid.UUID, action, description string)
}

type CreateCampaignInput struct {
	ActorID           uuid.UUID
	Name              string
	TargetRole        enums.Role
	MinSalesThreshold int
	PeriodStart       time.Time
	PeriodEnd         time.Time
	WinnerCount       int
	Prizes            map[int]string
}

type LeaderboardEntry struct {
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Rank        int       `json:"rank"`
	Qty         int       `json:"qty"`
	Prize       string    `json:"prize"`
	ClaimStatus string    `json:"claimStatus"`
}

type Leaderboard struct {
	CampaignID uuid.UUID          `json:"campaignId"`
	Winners    []LeaderboardEntry `json:"winners"`
}

type SubmitClaimInput struct {
	CampaignID  uuid.UUID
	UserID      uuid.UUID
	Role        enums.Role
	ReportedQty int
}

type SubmitClaimResult struct {
	ClaimID uuid.UUID `json:"claimId"`
}

type ReviewClaimInput struct {
	ClaimID      uuid.UUID
	ReviewerID   uuid.UUID
	ReviewerRole enums.Role
	Decision     enums.ClaimStatus
	Note         string
}

// Engine is the gift campaign surface.
type Engine interface {
	CreateCampaign(ctx context.Context, input CreateCampaignInput) (*models.GiftCampaign, error)
	AttributedSales(ctx context.Context, role enums.Role, from, to time.Time) ([]SalesTotal, error)
	Leaderboard(ctx context.Context, campaignID uuid.UUID) (*Leaderboard, error)
	SubmitClaim(ctx context.Context, input SubmitClaimInput) (*SubmitClaimResult, error)
	ReviewClaim(ctx context.Context, input ReviewClaimInput) (*models.GiftClaim, error)
	CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error)
}

type EngineParams struct {
	DB         txRunner
	Repo       *Repository
	Directory  hierarchy.Directory
	Outbox     outbox.Emitter
	Notifier   notifier
	Audit      auditor
	Metrics    *metrics.LedgerMetrics
	Logger     *logger.Logger
	CloseGrace time.Duration
	Clock      func() time.Time
}

type engine struct {
	db         txRunner
	repo       *Repository
	directory  hierarchy.Directory
	outbox     outbox.Emitter
	notifier   notifier
	audit      auditor
	metrics    *metrics.LedgerMetrics
	logg       *logger.Logger
	closeGrace time.Duration
	now        func() time.Time
}

func NewEngine(params EngineParams) (Engine, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("db client required")
	case params.Repo == nil:
		return nil, errors.New("campaign repository required")
	case params.Directory == nil:
		return nil, errors.New("hierarchy directory required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Notifier == nil, params.Audit == nil:
		return nil, errors.New("notifier and audit log required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.CloseGrace < 0:
		return nil, errors.New("close grace must be >= 0")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &engine{
		db:         params.DB,
		repo:       params.Repo,
		directory:  params.Directory,
		outbox:     params.Outbox,
		notifier:   params.Notifier,
		audit:      params.Audit,
		metrics:    params.Metrics,
		logg:       params.Logger,
		closeGrace: params.CloseGrace,
		now:        clock,
	}, nil
}

func (e *engine) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*models.GiftCampaign, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign name required")
	case !input.TargetRole.IsSellerTier():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("role %q cannot be ranked", input.TargetRole))
	case input.WinnerCount < 1:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "winner count must be at least 1")
	case input.MinSalesThreshold < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum sales must be >= 0")
	case input.PeriodStart.IsZero() || !input.PeriodEnd.After(input.PeriodStart):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after period start")
	}
	prizes := make(map[int]string, input.WinnerCount)
	for pos := 1; pos <= input.WinnerCount; pos++ {
		prize := strings.TrimSpace(input.Prizes[pos])
		if prize == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("prize for position %d required", pos))
		}
		prizes[pos] = prize
	}

	campaign := &models.GiftCampaign{
		Name:              name,
		TargetRole:        input.TargetRole,
		MinSalesThreshold: input.MinSalesThreshold,
		PeriodStart:       input.PeriodStart.UTC(),
		PeriodEnd:         input.PeriodEnd.UTC(),
		WinnerCount:       input.WinnerCount,
		Prizes:            types.NewPrizeTable(prizes),
		Status:            enums.CampaignStatusActive,
	}
	if err := e.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create gift campaign")
	}
	e.audit.Append(ctx, actorPtr(input.ActorID), activity.ActionCampaignCreated,
		fmt.Sprintf("gift campaign %q for %s, %d winners", campaign.Name, campaign.TargetRole, campaign.WinnerCount))
	return campaign, nil
}

func (e *engine) AttributedSales(ctx context.Context, role enums.Role, from, to time.Time) ([]SalesTotal, error) {
	return attributedSales(ctx, e.repo, role, from, to)
}

func attributedSales(ctx context.Context, repo *Repository, role enums.Role, from, to time.Time) ([]SalesTotal, error) {
	if !role.IsSellerTier() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("role %q cannot be ranked", role))
	}
	totals, err := repo.AttributedSales(ctx, role, from.UTC(), to.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attribute sales")
	}
	return totals, nil
}

func standings(ctx context.Context, repo *Repository, campaign *models.GiftCampaign) ([]Standing, error) {
	totals, err := attributedSales(ctx, repo, campaign.TargetRole, campaign.PeriodStart, campaign.PeriodEnd)
	if err != nil {
		return nil, err
	}
	ranked, err := Rank(totals, campaign.MinSalesThreshold, campaign.WinnerCount, campaign.Prizes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("campaign %s prize table", campaign.ID))
	}
	return ranked, nil
}

func (e *engine) Leaderboard(ctx context.Context, campaignID uuid.UUID) (*Leaderboard, error) {
	campaign, err := e.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return nil, campaignLoadError(err)
	}
	ranked, err := standings(ctx, e.repo, campaign)
	if err != nil {
		return nil, err
	}
	winners := Winners(ranked, campaign.WinnerCount)

	claims, err := e.repo.ListClaims(ctx, campaign.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list claims")
	}
	statusByUser := make(map[uuid.UUID]enums.ClaimStatus, len(claims))
	for _, c := range claims {
		statusByUser[c.UserID] = c.Status
	}

	ids := make([]uuid.UUID, 0, len(winners))
	for _, w := range winners {
		ids = append(ids, w.UserID)
	}
	nodes, err := e.directory.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{CampaignID: campaign.ID, Winners: make([]LeaderboardEntry, 0, len(winners))}
	for _, w := range winners {
		status := ClaimStatusNone
		if s, ok := statusByUser[w.UserID]; ok {
			status = string(s)
		}
		board.Winners = append(board.Winners, LeaderboardEntry{
			UserID:      w.UserID,
			Name:        nodes[w.UserID].Name,
			Rank:        w.Rank,
			Qty:         w.Qty,
			Prize:       w.Prize,
			ClaimStatus: status,
		})
	}
	return board, nil
}

func (e *engine) SubmitClaim(ctx context.Context, input SubmitClaimInput) (*SubmitClaimResult, error) {
	if input.CampaignID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign and user required")
	}
	if input.ReportedQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reported quantity must be >= 0")
	}

	var (
		claim    models.GiftClaim
		campaign *models.GiftCampaign
	)
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		var err error
		campaign, err = repo.LockCampaign(ctx, input.CampaignID)
		if err != nil {
			return campaignLoadError(err)
		}
		if campaign.Status != enums.CampaignStatusActive {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, fmt.Sprintf("campaign is %s", campaign.Status))
		}
		if e.now().Before(campaign.PeriodStart) {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "campaign has not started")
		}
		if input.Role != campaign.TargetRole {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, fmt.Sprintf("campaign targets %s", campaign.TargetRole))
		}

		existing, err := repo.FindClaim(ctx, campaign.ID, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load claim")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyExists, "prize already claimed")
		}

		ranked, err := standings(ctx, repo, campaign)
		if err != nil {
			return err
		}
		standing, ok := find(ranked, input.UserID)
		if !ok || standing.Rank > campaign.WinnerCount {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "not among the campaign winners").
				WithDetails(map[string]any{"rank": standing.Rank, "winnerCount": campaign.WinnerCount})
		}

		accepted, err := repo.CountAccepted(ctx, campaign.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count claims")
		}
		if accepted >= int64(campaign.WinnerCount) {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "all prizes have been claimed")
		}

		claim = models.GiftClaim{
			CampaignID:       campaign.ID,
			UserID:           input.UserID,
			Position:         standing.Rank,
			PrizeReceived:    standing.Prize,
			Status:           enums.ClaimStatusPending,
			SalesAtClaimTime: standing.Qty,
			ReportedQty:      input.ReportedQty,
		}
		if err := repo.CreateClaim(ctx, &claim); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeAlreadyExists, err, "prize already claimed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create claim")
		}

		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventGiftClaimSubmitted,
			AggregateID: claim.ID,
			Actor:       outbox.ActorOf(input.UserID, input.Role),
			Data: payloads.GiftClaimSubmittedEvent{
				ClaimID:    claim.ID,
				CampaignID: campaign.ID,
				UserID:     input.UserID,
				Position:   claim.Position,
				Prize:      claim.PrizeReceived,
			},
		})
	})
	if err != nil {
		e.metrics.IncClaim("refused")
		return nil, asInternal(err, "submit claim")
	}

	e.metrics.IncClaim("submitted")
	e.notifyStaff(ctx, campaign, &claim)
	e.audit.Append(ctx, actorPtr(input.UserID), activity.ActionClaimSubmitted,
		fmt.Sprintf("claimed %q at position %d in %s", claim.PrizeReceived, claim.Position, campaign.Name))
	return &SubmitClaimResult{ClaimID: claim.ID}, nil
}

func (e *engine) notifyStaff(ctx context.Context, campaign *models.GiftCampaign, claim *models.GiftClaim) {
	staff, err := e.directory.ListByRoles(ctx, enums.RoleOwner, enums.RoleAdmin)
	if err != nil {
		e.metrics.IncSideEffectFailure("notification")
		e.logg.Error(ctx, "list staff for claim notification", err)
		return
	}
	for _, member := range staff {
		e.notifier.Send(ctx, notifications.Message{
			UserID:   member.ID,
			Title:    "New gift claim",
			Body:     fmt.Sprintf("Position %d in %s claimed %q.", claim.Position, campaign.Name, claim.PrizeReceived),
			Severity: enums.NotificationInfo,
			Link:     fmt.Sprintf("/campaigns/%s/claims", campaign.ID),
		})
	}
}

func (e *engine) ReviewClaim(ctx context.Context, input ReviewClaimInput) (*models.GiftClaim, error) {
	if input.Decision != enums.ClaimStatusApproved && input.Decision != enums.ClaimStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", input.Decision))
	}
	note := strings.TrimSpace(input.Note)
	if input.Decision == enums.ClaimStatusRejected && note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection requires a note")
	}

	var claim *models.GiftClaim
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		var err error
		claim, err = repo.LockClaim(ctx, input.ClaimID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load claim")
		}
		if claim.Status != enums.ClaimStatusPending {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, fmt.Sprintf("claim is already %s", claim.Status))
		}

		reviewedAt := e.now()
		claim.Status = input.Decision
		claim.ReviewedAt = &reviewedAt
		claim.ReviewedBy = actorPtr(input.ReviewerID)
		if note != "" {
			claim.Note = &note
		}
		ok, err := repo.SaveReview(ctx, claim)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save review")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeFailedPrecondition, "claim is no longer pending")
		}

		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventGiftClaimReviewed,
			AggregateID: claim.ID,
			Actor:       outbox.ActorOf(input.ReviewerID, input.ReviewerRole),
			Data: payloads.GiftClaimReviewedEvent{
				ClaimID:    claim.ID,
				CampaignID: claim.CampaignID,
				UserID:     claim.UserID,
				Status:     claim.Status,
				ReviewedBy: input.ReviewerID,
			},
		})
	})
	if err != nil {
		return nil, asInternal(err, "review claim")
	}

	e.metrics.IncClaim(string(claim.Status))
	msg := notifications.Message{
		UserID:   claim.UserID,
		Title:    "Gift claim approved",
		Body:     fmt.Sprintf("Your claim for %q was approved.", claim.PrizeReceived),
		Severity: enums.NotificationSuccess,
		Link:     fmt.Sprintf("/campaigns/%s", claim.CampaignID),
	}
	if claim.Status == enums.ClaimStatusRejected {
		msg.Title = "Gift claim rejected"
		msg.Body = fmt.Sprintf("Your claim for %q was rejected: %s", claim.PrizeReceived, note)
		msg.Severity = enums.NotificationDanger
	}
	e.notifier.Send(ctx, msg)
	e.audit.Append(ctx, actorPtr(input.ReviewerID), activity.ActionClaimReviewed,
		fmt.Sprintf("claim %s %s", claim.ID, claim.Status))
	return claim, nil
}

// CloseExpiredCampaigns completes active campaigns whose period ended more
// than the configured grace before now.
func (e *engine) CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error) {
	closed, err := e.repo.CloseExpired(ctx, now.UTC().Add(-e.closeGrace))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close expired campaigns")
	}
	if closed > 0 {
		e.logg.Info(ctx, fmt.Sprintf("closed %d expired gift campaigns", closed))
	}
	return closed, nil
}

func campaignLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load campaign")
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
