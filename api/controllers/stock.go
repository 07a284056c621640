package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/responses"
	"github.com/angelmondragon/vouchernet-backend/api/validators"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

type addStockRequest struct {
	PartnerID   uuid.UUID `json:"partnerId" validate:"required"`
	BranchID    uuid.UUID `json:"branchId" validate:"required"`
	SellerID    uuid.UUID `json:"sellerId" validate:"required"`
	VoucherType string    `json:"voucherType" validate:"required,vouchertype"`
	Amount      int       `json:"amount" validate:"gt=0"`
}

type stockEntryResponse struct {
	VoucherType enums.VoucherType `json:"voucherType"`
	Quantity    int               `json:"quantity"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// AddStock tops up a seller's stock for one voucher type.
func AddStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "stock service")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body addStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddStock(r.Context(), stock.AddStockInput{
			ActorID:     actorID,
			ActorRole:   role,
			PartnerID:   body.PartnerID,
			BranchID:    body.BranchID,
			SellerID:    body.SellerID,
			VoucherType: enums.VoucherType(body.VoucherType),
			Amount:      body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListStock returns a seller's stock rows. A Link may only read its own.
func ListStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "stock service")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role == enums.RoleLink && actorID != sellerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "sellers may only view their own stock"))
			return
		}

		rows, err := svc.ListStock(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]stockEntryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, stockEntryResponse{VoucherType: row.VoucherType, Quantity: row.Quantity, UpdatedAt: row.UpdatedAt})
		}
		responses.WriteSuccess(w, map[string]any{"sellerId": sellerID, "items": out})
	}
}
