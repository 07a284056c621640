package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/responses"
	"github.com/angelmondragon/vouchernet-backend/api/validators"
	"github.com/angelmondragon/vouchernet-backend/internal/customers"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

type createCustomerRequest struct {
	Name    string  `json:"name" validate:"required,max=120"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=255"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

type customerTransactionRequest struct {
	VoucherType string `json:"voucherType" validate:"required,vouchertype"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

type loyaltyCampaignRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsDefault   bool    `json:"isDefault"`
}

type customerResponse struct {
	ID                    uuid.UUID `json:"id"`
	SellerID              uuid.UUID `json:"sellerId"`
	Name                  string    `json:"name"`
	Address               *string   `json:"address,omitempty"`
	Phone                 *string   `json:"phone,omitempty"`
	CumulativePurchaseQty int       `json:"cumulativePurchaseQty"`
	CreatedAt             time.Time `json:"createdAt"`
}

type couponResponse struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID uuid.UUID  `json:"customerId"`
	CouponID   uuid.UUID  `json:"couponId"`
	IssuedAt   time.Time  `json:"issuedAt"`
	IsUsed     bool       `json:"isUsed"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
}

type loyaltyCampaignResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toCouponResponse(c models.CustomerCoupon) couponResponse {
	return couponResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		CouponID:   c.CouponID,
		IssuedAt:   c.IssuedAt,
		IsUsed:     c.IsUsed,
		UsedAt:     c.UsedAt,
	}
}

// CreateCustomer registers a customer owned by the calling seller.
func CreateCustomer(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		sellerID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body createCustomerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.CreateCustomer(r.Context(), customers.CreateCustomerInput{
			SellerID: sellerID,
			Name:     validators.SanitizeString(body.Name, 120),
			Address:  validators.SanitizeOptional(body.Address, 255),
			Phone:    validators.SanitizeOptional(body.Phone, 32),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customerResponse{
			ID:                    c.ID,
			SellerID:              c.SellerID,
			Name:                  c.Name,
			Address:               c.Address,
			Phone:                 c.Phone,
			CumulativePurchaseQty: c.CumulativePurchaseQty,
			CreatedAt:             c.CreatedAt,
		})
	}
}

// RecordCustomerTransaction books a purchase and may grant a loyalty coupon.
func RecordCustomerTransaction(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		sellerID, role, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body customerTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordTransaction(r.Context(), customers.TransactionInput{
			ActorID:     sellerID,
			ActorRole:   role,
			SellerID:    sellerID,
			CustomerID:  customerID,
			VoucherType: enums.VoucherType(body.VoucherType),
			Quantity:    body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ListCustomerCoupons(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		sellerID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grants, err := svc.ListCoupons(r.Context(), sellerID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]couponResponse, 0, len(grants))
		for _, g := range grants {
			out = append(out, toCouponResponse(g))
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}

type customerTransactionResponse struct {
	ID          uuid.UUID         `json:"id"`
	VoucherType enums.VoucherType `json:"voucherType"`
	Qty         int               `json:"qty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// ListCustomerTransactions returns the purchase history behind a customer's
// cumulative total.
func ListCustomerTransactions(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		sellerID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListTransactions(r.Context(), sellerID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]customerTransactionResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, customerTransactionResponse{ID: row.ID, VoucherType: row.VoucherType, Qty: row.Qty, CreatedAt: row.CreatedAt})
		}
		responses.WriteSuccess(w, map[string]any{"customerId": customerID, "items": out})
	}
}

func RedeemCoupon(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		sellerID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grantID, err := validators.ParseUUIDParam(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grant, err := svc.RedeemCoupon(r.Context(), customers.RedeemInput{
			SellerID:   sellerID,
			CustomerID: customerID,
			GrantID:    grantID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCouponResponse(*grant))
	}
}

func CreateLoyaltyCampaign(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "customer service")
			return
		}
		actorID, _, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body loyaltyCampaignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.CreateLoyaltyCampaign(r.Context(), customers.CampaignInput{
			ActorID:     actorID,
			Name:        validators.SanitizeString(body.Name, 120),
			Description: validators.SanitizeOptional(body.Description, 500),
			IsDefault:   body.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, loyaltyCampaignResponse{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			IsDefault:   c.IsDefault,
			Active:      c.Active,
			CreatedAt:   c.CreatedAt,
		})
	}
}
