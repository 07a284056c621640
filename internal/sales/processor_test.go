package sales

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (r *recordingNotifier) Send(_ context.Context, msg notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recordingNotifier) titlesFor(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var titles []string
	for _, msg := range r.sent {
		if msg.UserID == userID {
			titles = append(titles, msg.Title)
		}
	}
	return titles
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) Append(_ context.Context, _ *uuid.UUID, action, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

type harness struct {
	client    *db.Client
	processor *processor
	ledger    *stock.Ledger
	catalog   pricing.Catalog
	notifier  *recordingNotifier
	audit     *recordingAudit
	chain     dbtest.Chain
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := stock.NewLedger(stock.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	dir, err := hierarchy.NewDirectory(hierarchy.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	catalog, err := pricing.NewCatalog(pricing.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{
		client:   client,
		ledger:   ledger,
		catalog:  catalog,
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
		chain:    dbtest.SeedChain(t, client, "Cimahi"),
	}
	h.processor, err = newProcessor(ProcessorParams{
		DB:        client,
		Repo:      NewRepository(client.DB()),
		Ledger:    ledger,
		Directory: dir,
		Pricing:   catalog,
		Outbox:    outbox.NewWriter(outbox.NewRepository(client.DB()), nil),
		Notifier:  h.notifier,
		Audit:     h.audit,
		Logger:    logger.Nop(),
	})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	return h
}

func (h *harness) stock(t *testing.T, vt enums.VoucherType, qty int) {
	t.Helper()
	if _, err := h.ledger.AddStock(context.Background(), h.client.DB(), h.chain.Seller.ID, vt, qty); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (h *harness) price(t *testing.T, vt enums.VoucherType) {
	t.Helper()
	_, err := h.catalog.Upsert(context.Background(), models.PricingRule{
		BranchID:             h.chain.Branch.ID,
		VoucherType:          vt,
		BasePrice:            10000,
		SellPrice:            20000,
		BranchShare:          4000,
		FeeSellerPct:         decimal.NewFromInt(5),
		FeeBranchPct:         decimal.NewFromInt(10),
		PartnerCommissionPct: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("seed pricing: %v", err)
	}
}

func (h *harness) input(vt enums.VoucherType, qty int) RecordSaleInput {
	return RecordSaleInput{
		PerformerID:   h.chain.Seller.ID,
		PerformerRole: enums.RoleLink,
		PartnerID:     h.chain.Partner.ID,
		BranchID:      h.chain.Branch.ID,
		SellerID:      h.chain.Seller.ID,
		VoucherType:   vt,
		Quantity:      qty,
	}
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := h.client.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRecordSalePricedWritesSplit(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ1Hari, 30)
	h.price(t, enums.VoucherMJ1Hari)

	res, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 2))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if res.RemainingStock != 28 {
		t.Fatalf("expected 28 remaining, got %d", res.RemainingStock)
	}
	if res.Split == nil || res.Split.TotalSellerRevenue != 13000 || res.Split.OwnerRevenue != 16000 {
		t.Fatalf("unexpected split %+v", res.Split)
	}

	var record models.SaleRecord
	if err := h.client.DB().Where("id = ?", res.SaleID).First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.PartnerID != h.chain.Partner.ID || record.QuantitySold != 2 || record.TotalBranchRevenue != 10000 {
		t.Fatalf("unexpected record %+v", record)
	}
	if got := h.count(t, &models.OutboxEvent{}); got != 1 {
		t.Fatalf("expected one outbox event, got %d", got)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("no stock alert expected above threshold, got %+v", h.notifier.sent)
	}
	if len(h.audit.actions) != 1 {
		t.Fatalf("expected one audit entry, got %v", h.audit.actions)
	}
}

func TestRecordSaleUnpricedIsQuantityOnly(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherJM2Jam, 15)

	res, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherJM2Jam, 1))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if res.Split != nil {
		t.Fatalf("expected nil split for unpriced sale, got %+v", res.Split)
	}
	var record models.SaleRecord
	h.client.DB().Where("id = ?", res.SaleID).First(&record)
	if record.FeeSeller != 0 || record.OwnerRevenue != 0 || record.TotalSellerRevenue != 0 || record.QuantitySold != 1 {
		t.Fatalf("expected zero split fields, got %+v", record)
	}
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ7Hari, 2)

	_, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ7Hari, 3))
	if !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	_, err = h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ30Hari, 1))
	if !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock for missing entry, got %v", err)
	}
	if got := h.count(t, &models.SaleRecord{}); got != 0 {
		t.Fatalf("expected no sale records, got %d", got)
	}
}

func TestRecordSaleIsAtomic(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ1Hari, 10)
	h.price(t, enums.VoucherMJ1Hari)
	h.processor.afterDeduct = func(*gorm.DB) error { return errors.New("disk full") }

	_, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 4))
	if !pkgerrors.Is(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}

	left, _ := h.ledger.Available(context.Background(), nil, h.chain.Seller.ID, enums.VoucherMJ1Hari)
	if left != 10 {
		t.Fatalf("stock must be untouched after a failed sale, got %d", left)
	}
	if got := h.count(t, &models.SaleRecord{}); got != 0 {
		t.Fatalf("expected no sale record, got %d", got)
	}
	if got := h.count(t, &models.OutboxEvent{}); got != 0 {
		t.Fatalf("expected no outbox event, got %d", got)
	}
	if len(h.notifier.sent) != 0 || len(h.audit.actions) != 0 {
		t.Fatalf("side effects must not run for a rolled back sale")
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ15Jam, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ15Jam, 3))
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got %d/%d", succeeded, rejected)
	}
	left, _ := h.ledger.Available(context.Background(), nil, h.chain.Seller.ID, enums.VoucherMJ15Jam)
	if left != 2 {
		t.Fatalf("expected 2 left, got %d", left)
	}
	if got := h.count(t, &models.SaleRecord{}); got != 1 {
		t.Fatalf("expected exactly one sale record, got %d", got)
	}
}

func TestRecordSaleHierarchyMismatch(t *testing.T) {
	h := newHarness(t)
	other := dbtest.SeedChain(t, h.client, "Garut")
	in := h.input(enums.VoucherMJ1Hari, 1)
	in.BranchID = other.Branch.ID

	if _, err := h.processor.RecordSale(context.Background(), in); !pkgerrors.Is(err, pkgerrors.CodeHierarchyMismatch) {
		t.Fatalf("expected hierarchy mismatch, got %v", err)
	}
	in = h.input(enums.VoucherMJ1Hari, 1)
	in.SellerID = uuid.New()
	if _, err := h.processor.RecordSale(context.Background(), in); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown seller, got %v", err)
	}
}

func TestRecordSaleValidatesInput(t *testing.T) {
	h := newHarness(t)
	if _, err := h.processor.RecordSale(context.Background(), h.input("MJ_90hari", 1)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for voucher type, got %v", err)
	}
	if _, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 0)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for quantity, got %v", err)
	}
}

func TestRecordSaleCorruptPricingIsInternal(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ1Hari, 5)
	broken := models.PricingRule{
		BranchID:             h.chain.Branch.ID,
		VoucherType:          enums.VoucherMJ1Hari,
		BasePrice:            10000,
		SellPrice:            9000,
		FeeSellerPct:         decimal.Zero,
		FeeBranchPct:         decimal.Zero,
		PartnerCommissionPct: decimal.Zero,
	}
	if err := h.client.DB().Create(&broken).Error; err != nil {
		t.Fatalf("insert broken rule: %v", err)
	}

	if _, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 1)); !pkgerrors.Is(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	left, _ := h.ledger.Available(context.Background(), nil, h.chain.Seller.ID, enums.VoucherMJ1Hari)
	if left != 5 {
		t.Fatalf("stock must be untouched, got %d", left)
	}
}

func TestRecordSaleStockAlerts(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ1Hari, 12)

	if _, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 3)); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if titles := h.notifier.titlesFor(h.chain.Seller.ID); len(titles) != 1 || titles[0] != "Low stock" {
		t.Fatalf("expected low stock alert, got %v", titles)
	}

	if _, err := h.processor.RecordSale(context.Background(), h.input(enums.VoucherMJ1Hari, 9)); err != nil {
		t.Fatalf("second sale: %v", err)
	}
	if titles := h.notifier.titlesFor(h.chain.Seller.ID); len(titles) != 2 || titles[1] != "Stock depleted" {
		t.Fatalf("expected depletion alert for seller, got %v", titles)
	}
	if titles := h.notifier.titlesFor(h.chain.Branch.ID); len(titles) != 1 {
		t.Fatalf("expected branch alert on depletion, got %v", titles)
	}
}

func TestRecordSaleSellerCannotSellForOthers(t *testing.T) {
	h := newHarness(t)
	h.stock(t, enums.VoucherMJ1Hari, 5)
	in := h.input(enums.VoucherMJ1Hari, 1)
	in.PerformerID = uuid.New()
	if _, err := h.processor.RecordSale(context.Background(), in); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	h.price(t, enums.VoucherMJ7Hari)

	res, err := h.processor.Preview(context.Background(), PreviewInput{BranchID: h.chain.Branch.ID, VoucherType: enums.VoucherMJ7Hari, Quantity: 1})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !res.Priced || res.Split.Gross() != 20000 {
		t.Fatalf("unexpected preview %+v", res)
	}
	res, err = h.processor.Preview(context.Background(), PreviewInput{BranchID: h.chain.Branch.ID, VoucherType: enums.VoucherJM2Jam, Quantity: 1})
	if err != nil {
		t.Fatalf("preview unpriced: %v", err)
	}
	if res.Priced || res.Split != nil {
		t.Fatalf("expected unpriced preview, got %+v", res)
	}
}
