package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/middleware"
	"github.com/angelmondragon/vouchernet-backend/internal/campaigns"
	"github.com/angelmondragon/vouchernet-backend/internal/customers"
	"github.com/angelmondragon/vouchernet-backend/internal/imports"
	"github.com/angelmondragon/vouchernet-backend/internal/sales"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// newRequest builds a request carrying an authenticated actor and chi params.
func newRequest(method, target, body string, actor uuid.UUID, role enums.Role, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if actor != uuid.Nil {
		ctx = middleware.WithActor(ctx, actor, role)
	}
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	return req.WithContext(ctx)
}

type fakeStockService struct {
	addStockFn  func(ctx context.Context, input stock.AddStockInput) (*stock.AddStockResult, error)
	listStockFn func(ctx context.Context, sellerID uuid.UUID) ([]models.VoucherStock, error)
}

func (f *fakeStockService) AddStock(ctx context.Context, input stock.AddStockInput) (*stock.AddStockResult, error) {
	if f.addStockFn != nil {
		return f.addStockFn(ctx, input)
	}
	return &stock.AddStockResult{}, nil
}

func (f *fakeStockService) ListStock(ctx context.Context, sellerID uuid.UUID) ([]models.VoucherStock, error) {
	if f.listStockFn != nil {
		return f.listStockFn(ctx, sellerID)
	}
	return nil, nil
}

type fakeProcessor struct {
	recordSaleFn func(ctx context.Context, input sales.RecordSaleInput) (*sales.RecordSaleResult, error)
	previewFn    func(ctx context.Context, input sales.PreviewInput) (*sales.PreviewResult, error)
	historyFn    func(ctx context.Context, input sales.HistoryInput) ([]models.SaleRecord, error)
	saleFn       func(ctx context.Context, actorID uuid.UUID, role enums.Role, saleID uuid.UUID) (*models.SaleRecord, error)
}

func (f *fakeProcessor) RecordSale(ctx context.Context, input sales.RecordSaleInput) (*sales.RecordSaleResult, error) {
	if f.recordSaleFn != nil {
		return f.recordSaleFn(ctx, input)
	}
	return &sales.RecordSaleResult{}, nil
}

func (f *fakeProcessor) Preview(ctx context.Context, input sales.PreviewInput) (*sales.PreviewResult, error) {
	if f.previewFn != nil {
		return f.previewFn(ctx, input)
	}
	return &sales.PreviewResult{}, nil
}

func (f *fakeProcessor) History(ctx context.Context, input sales.HistoryInput) ([]models.SaleRecord, error) {
	if f.historyFn != nil {
		return f.historyFn(ctx, input)
	}
	return nil, nil
}

func (f *fakeProcessor) Sale(ctx context.Context, actorID uuid.UUID, role enums.Role, saleID uuid.UUID) (*models.SaleRecord, error) {
	if f.saleFn != nil {
		return f.saleFn(ctx, actorID, role, saleID)
	}
	return &models.SaleRecord{ID: saleID}, nil
}

type fakeImporter struct {
	importFn func(ctx context.Context, input imports.Input) (*imports.Result, error)
}

func (f *fakeImporter) ImportSales(ctx context.Context, input imports.Input) (*imports.Result, error) {
	if f.importFn != nil {
		return f.importFn(ctx, input)
	}
	return &imports.Result{}, nil
}

type fakeCustomerService struct {
	createCustomerFn    func(ctx context.Context, input customers.CreateCustomerInput) (*models.Customer, error)
	recordTransactionFn func(ctx context.Context, input customers.TransactionInput) (*customers.TransactionResult, error)
	createCampaignFn    func(ctx context.Context, input customers.CampaignInput) (*models.LoyaltyCampaign, error)
	redeemFn            func(ctx context.Context, input customers.RedeemInput) (*models.CustomerCoupon, error)
	listCouponsFn       func(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerCoupon, error)
	listTransactionsFn  func(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerTransaction, error)
}

func (f *fakeCustomerService) CreateCustomer(ctx context.Context, input customers.CreateCustomerInput) (*models.Customer, error) {
	if f.createCustomerFn != nil {
		return f.createCustomerFn(ctx, input)
	}
	return &models.Customer{ID: uuid.New(), SellerID: input.SellerID, Name: input.Name, CreatedAt: time.Now()}, nil
}

func (f *fakeCustomerService) RecordTransaction(ctx context.Context, input customers.TransactionInput) (*customers.TransactionResult, error) {
	if f.recordTransactionFn != nil {
		return f.recordTransactionFn(ctx, input)
	}
	return &customers.TransactionResult{}, nil
}

func (f *fakeCustomerService) CreateLoyaltyCampaign(ctx context.Context, input customers.CampaignInput) (*models.LoyaltyCampaign, error) {
	if f.createCampaignFn != nil {
		return f.createCampaignFn(ctx, input)
	}
	return &models.LoyaltyCampaign{ID: uuid.New(), Name: input.Name, IsDefault: input.IsDefault, Active: true}, nil
}

func (f *fakeCustomerService) RedeemCoupon(ctx context.Context, input customers.RedeemInput) (*models.CustomerCoupon, error) {
	if f.redeemFn != nil {
		return f.redeemFn(ctx, input)
	}
	return &models.CustomerCoupon{ID: input.GrantID, CustomerID: input.CustomerID}, nil
}

func (f *fakeCustomerService) ListCoupons(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerCoupon, error) {
	if f.listCouponsFn != nil {
		return f.listCouponsFn(ctx, sellerID, customerID)
	}
	return nil, nil
}

func (f *fakeCustomerService) ListTransactions(ctx context.Context, sellerID, customerID uuid.UUID) ([]models.CustomerTransaction, error) {
	if f.listTransactionsFn != nil {
		return f.listTransactionsFn(ctx, sellerID, customerID)
	}
	return nil, nil
}

type fakeEngine struct {
	createCampaignFn  func(ctx context.Context, input campaigns.CreateCampaignInput) (*models.GiftCampaign, error)
	attributedSalesFn func(ctx context.Context, role enums.Role, from, to time.Time) ([]campaigns.SalesTotal, error)
	leaderboardFn     func(ctx context.Context, campaignID uuid.UUID) (*campaigns.Leaderboard, error)
	submitClaimFn     func(ctx context.Context, input campaigns.SubmitClaimInput) (*campaigns.SubmitClaimResult, error)
	reviewClaimFn     func(ctx context.Context, input campaigns.ReviewClaimInput) (*models.GiftClaim, error)
	closeExpiredFn    func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeEngine) CreateCampaign(ctx context.Context, input campaigns.CreateCampaignInput) (*models.GiftCampaign, error) {
	if f.createCampaignFn != nil {
		return f.createCampaignFn(ctx, input)
	}
	return &models.GiftCampaign{ID: uuid.New(), Name: input.Name}, nil
}

func (f *fakeEngine) AttributedSales(ctx context.Context, role enums.Role, from, to time.Time) ([]campaigns.SalesTotal, error) {
	if f.attributedSalesFn != nil {
		return f.attributedSalesFn(ctx, role, from, to)
	}
	return nil, nil
}

func (f *fakeEngine) Leaderboard(ctx context.Context, campaignID uuid.UUID) (*campaigns.Leaderboard, error) {
	if f.leaderboardFn != nil {
		return f.leaderboardFn(ctx, campaignID)
	}
	return &campaigns.Leaderboard{CampaignID: campaignID}, nil
}

func (f *fakeEngine) SubmitClaim(ctx context.Context, input campaigns.SubmitClaimInput) (*campaigns.SubmitClaimResult, error) {
	if f.submitClaimFn != nil {
		return f.submitClaimFn(ctx, input)
	}
	return &campaigns.SubmitClaimResult{ClaimID: uuid.New()}, nil
}

func (f *fakeEngine) ReviewClaim(ctx context.Context, input campaigns.ReviewClaimInput) (*models.GiftClaim, error) {
	if f.reviewClaimFn != nil {
		return f.reviewClaimFn(ctx, input)
	}
	return &models.GiftClaim{ID: input.ClaimID, Status: input.Decision}, nil
}

func (f *fakeEngine) CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error) {
	if f.closeExpiredFn != nil {
		return f.closeExpiredFn(ctx, now)
	}
	return 0, nil
}
