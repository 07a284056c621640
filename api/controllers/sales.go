package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/responses"
	"github.com/angelmondragon/vouchernet-backend/api/validators"
	"github.com/angelmondragon/vouchernet-backend/internal/imports"
	"github.com/angelmondragon/vouchernet-backend/internal/sales"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

type recordSaleRequest struct {
	PartnerID   uuid.UUID `json:"partnerId" validate:"required"`
	BranchID    uuid.UUID `json:"branchId" validate:"required"`
	SellerID    uuid.UUID `json:"sellerId" validate:"required"`
	VoucherType string    `json:"voucherType" validate:"required,vouchertype"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
}

type previewRequest struct {
	BranchID    uuid.UUID `json:"branchId" validate:"required"`
	VoucherType string    `json:"voucherType" validate:"required,vouchertype"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
}

type importRequest struct {
	Rows []imports.Row `json:"rows"`
}

// RecordSale sells vouchers on behalf of the token subject.
func RecordSale(proc sales.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proc == nil {
			serviceUnavailable(w, r, logg, "sale processor")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body recordSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := proc.RecordSale(r.Context(), sales.RecordSaleInput{
			PerformerID:   actorID,
			PerformerRole: role,
			PartnerID:     body.PartnerID,
			BranchID:      body.BranchID,
			SellerID:      body.SellerID,
			VoucherType:   enums.VoucherType(body.VoucherType),
			Quantity:      body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PreviewSale computes the split a sale would produce without touching stock.
func PreviewSale(proc sales.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proc == nil {
			serviceUnavailable(w, r, logg, "sale processor")
			return
		}
		var body previewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := proc.Preview(r.Context(), sales.PreviewInput{
			BranchID:    body.BranchID,
			VoucherType: enums.VoucherType(body.VoucherType),
			Quantity:    body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ImportSales replays a batch of named sale rows. Row failures are reported
// in the body; the request itself only fails for batch level problems.
func ImportSales(importer imports.Importer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if importer == nil {
			serviceUnavailable(w, r, logg, "sale importer")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body importRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := importer.ImportSales(r.Context(), imports.Input{
			PerformerID:   actorID,
			PerformerRole: role,
			Rows:          body.Rows,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type saleResponse struct {
	ID                 uuid.UUID         `json:"id"`
	PerformerID        uuid.UUID         `json:"performerId"`
	PartnerID          uuid.UUID         `json:"partnerId"`
	BranchID           uuid.UUID         `json:"branchId"`
	SellerID           uuid.UUID         `json:"sellerId"`
	VoucherType        enums.VoucherType `json:"voucherType"`
	QuantitySold       int               `json:"quantitySold"`
	FeeSeller          int64             `json:"feeSeller"`
	FeeBranch          int64             `json:"feeBranch"`
	PartnerCommission  int64             `json:"partnerCommission"`
	OwnerRevenue       int64             `json:"ownerRevenue"`
	TotalSellerRevenue int64             `json:"totalSellerRevenue"`
	TotalBranchRevenue int64             `json:"totalBranchRevenue"`
	CreatedAt          time.Time         `json:"createdAt"`
}

func toSaleResponse(s models.SaleRecord) saleResponse {
	return saleResponse{
		ID:                 s.ID,
		PerformerID:        s.PerformerID,
		PartnerID:          s.PartnerID,
		BranchID:           s.BranchID,
		SellerID:           s.SellerID,
		VoucherType:        s.VoucherType,
		QuantitySold:       s.QuantitySold,
		FeeSeller:          s.FeeSeller,
		FeeBranch:          s.FeeBranch,
		PartnerCommission:  s.PartnerCommission,
		OwnerRevenue:       s.OwnerRevenue,
		TotalSellerRevenue: s.TotalSellerRevenue,
		TotalBranchRevenue: s.TotalBranchRevenue,
		CreatedAt:          s.CreatedAt,
	}
}

// ListSales returns one seller's sales: ?sellerId=&from=&to=&limit=.
func ListSales(proc sales.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proc == nil {
			serviceUnavailable(w, r, logg, "sale processor")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		input, err := historyQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorID, input.ActorRole = actorID, role

		rows, err := proc.History(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]saleResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toSaleResponse(row))
		}
		responses.WriteSuccess(w, map[string]any{"sellerId": input.SellerID, "items": out})
	}
}

func historyQuery(r *http.Request) (sales.HistoryInput, error) {
	var (
		in  sales.HistoryInput
		err error
	)
	if in.SellerID, err = validators.ParseQueryUUID(r, "sellerId"); err != nil {
		return in, err
	}
	if in.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return in, err
	}
	if in.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return in, err
	}
	in.Limit, err = validators.ParseQueryInt(r, "limit", 50, 1, 200)
	return in, err
}

func GetSale(proc sales.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proc == nil {
			serviceUnavailable(w, r, logg, "sale processor")
			return
		}
		actorID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		saleID, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := proc.Sale(r.Context(), actorID, role, saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSaleResponse(*record))
	}
}
