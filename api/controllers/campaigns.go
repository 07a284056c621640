package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/responses"
	"github.com/angelmondragon/vouchernet-backend/api/validators"
	"github.com/angelmondragon/vouchernet-backend/internal/campaigns"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/types"
)

type prizeRequest struct {
	Position int    `json:"position" validate:"gt=0"`
	Prize    string `json:"prize" validate:"required,max=200"`
}

type createCampaignRequest struct {
	Name              string         `json:"name" validate:"required,max=120"`
	TargetRole        string         `json:"targetRole" validate:"required,sellertier"`
	MinSalesThreshold int            `json:"minSalesThreshold" validate:"gte=0"`
	PeriodStart       time.Time      `json:"periodStart" validate:"required"`
	PeriodEnd         time.Time      `json:"periodEnd" validate:"required,gtfield=PeriodStart"`
	WinnerCount       int            `json:"winnerCount" validate:"gt=0"`
	Prizes            []prizeRequest `json:"prizes" validate:"required,min=1,dive"`
}

type submitClaimRequest struct {
	ReportedQty int `json:"reportedQty" validate:"gte=0"`
}

type reviewClaimRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note" validate:"max=500"`
}

type campaignResponse struct {
	ID                uuid.UUID            `json:"id"`
	Name              string               `json:"name"`
	TargetRole        enums.Role           `json:"targetRole"`
	MinSalesThreshold int                  `json:"minSalesThreshold"`
	PeriodStart       time.Time            `json:"periodStart"`
	PeriodEnd         time.Time            `json:"periodEnd"`
	WinnerCount       int                  `json:"winnerCount"`
	Prizes            types.PrizeTable     `json:"prizes"`
	Status            enums.CampaignStatus `json:"status"`
}

type claimResponse struct {
	ID               uuid.UUID         `json:"id"`
	CampaignID       uuid.UUID         `json:"campaignId"`
	UserID           uuid.UUID         `json:"userId"`
	Position         int               `json:"position"`
	PrizeReceived    string            `json:"prizeReceived"`
	Status           enums.ClaimStatus `json:"status"`
	SalesAtClaimTime int               `json:"salesAtClaimTime"`
	ReportedQty      int               `json:"reportedQty"`
	ReviewedBy       *uuid.UUID        `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time        `json:"reviewedAt,omitempty"`
	Note             *string           `json:"note,omitempty"`
}

func toClaimResponse(c models.GiftClaim) claimResponse {
	return claimResponse{
		ID:               c.ID,
		CampaignID:       c.CampaignID,
		UserID:           c.UserID,
		Position:         c.Position,
		PrizeReceived:    c.PrizeReceived,
		Status:           c.Status,
		SalesAtClaimTime: c.SalesAtClaimTime,
		ReportedQty:      c.ReportedQty,
		ReviewedBy:       c.ReviewedBy,
		ReviewedAt:       c.ReviewedAt,
		Note:             c.Note,
	}
}

// CreateCampaign opens a gift campaign. Position coverage of the prize list
// is checked by the engine.
func CreateCampaign(engine campaigns.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			serviceUnavailable(w, r, logg, "campaign engine")
			return
		}
		actorID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body createCampaignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prizes := make(map[int]string, len(body.Prizes))
		for _, p := range body.Prizes {
			if _, dup := prizes[p.Position]; dup {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "duplicate prize position").
					WithDetails(map[string]any{"position": p.Position}))
				return
			}
			prizes[p.Position] = validators.SanitizeString(p.Prize, 200)
		}

		c, err := engine.CreateCampaign(r.Context(), campaigns.CreateCampaignInput{
			ActorID:           actorID,
			Name:              validators.SanitizeString(body.Name, 120),
			TargetRole:        enums.Role(body.TargetRole),
			MinSalesThreshold: body.MinSalesThreshold,
			PeriodStart:       body.PeriodStart,
			PeriodEnd:         body.PeriodEnd,
			WinnerCount:       body.WinnerCount,
			Prizes:            prizes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaignResponse{
			ID:                c.ID,
			Name:              c.Name,
			TargetRole:        c.TargetRole,
			MinSalesThreshold: c.MinSalesThreshold,
			PeriodStart:       c.PeriodStart,
			PeriodEnd:         c.PeriodEnd,
			WinnerCount:       c.WinnerCount,
			Prizes:            c.Prizes,
			Status:            c.Status,
		})
	}
}

func CampaignLeaderboard(engine campaigns.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			serviceUnavailable(w, r, logg, "campaign engine")
			return
		}
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		board, err := engine.Leaderboard(r.Context(), campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, board)
	}
}

// SubmitClaim files a prize claim for the caller. Rank is recomputed by the
// engine; reportedQty is only kept for the reviewer.
func SubmitClaim(engine campaigns.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			serviceUnavailable(w, r, logg, "campaign engine")
			return
		}
		userID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body submitClaimRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.SubmitClaim(r.Context(), campaigns.SubmitClaimInput{
			CampaignID:  campaignID,
			UserID:      userID,
			Role:        role,
			ReportedQty: body.ReportedQty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ReviewClaim(engine campaigns.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			serviceUnavailable(w, r, logg, "campaign engine")
			return
		}
		reviewerID, reviewerRole, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		claimID, err := validators.ParseUUIDParam(r, "claimId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reviewClaimRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claim, err := engine.ReviewClaim(r.Context(), campaigns.ReviewClaimInput{
			ClaimID:      claimID,
			ReviewerID:   reviewerID,
			ReviewerRole: reviewerRole,
			Decision:     enums.ClaimStatus(body.Decision),
			Note:         body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toClaimResponse(*claim))
	}
}
