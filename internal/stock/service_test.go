package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
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

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) Append(_ context.Context, _ *uuid.UUID, action, _ string) {
	r.actions = append(r.actions, action)
}

type serviceHarness struct {
	client   *db.Client
	svc      Service
	notifier *recordingNotifier
	audit    *recordingAudit
}

func newServiceHarness(t *testing.T) serviceHarness {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ledger, err := NewLedger(repo)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	dir, err := hierarchy.NewDirectory(hierarchy.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	h := serviceHarness{client: client, notifier: &recordingNotifier{}, audit: &recordingAudit{}}
	h.svc, err = NewService(ServiceParams{
		DB:        client,
		Repo:      repo,
		Ledger:    ledger,
		Directory: dir,
		Outbox:    outbox.NewWriter(outbox.NewRepository(client.DB()), nil),
		Notifier:  h.notifier,
		Audit:     h.audit,
		Logger:    logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return h
}

func TestServiceAddStock(t *testing.T) {
	h := newServiceHarness(t)
	chain := dbtest.SeedChain(t, h.client, "Bandung")
	ctx := context.Background()

	res, err := h.svc.AddStock(ctx, AddStockInput{
		ActorID:     chain.Partner.ID,
		ActorRole:   enums.RoleMitraCabang,
		PartnerID:   chain.Partner.ID,
		BranchID:    chain.Branch.ID,
		SellerID:    chain.Seller.ID,
		VoucherType: enums.VoucherMJ7Hari,
		Amount:      20,
	})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if res.Quantity != 20 {
		t.Fatalf("expected quantity 20, got %d", res.Quantity)
	}

	var events []models.OutboxEvent
	h.client.DB().Where("event_type = ?", enums.EventStockAdded).Find(&events)
	if len(events) != 1 || events[0].AggregateID != chain.Seller.ID {
		t.Fatalf("expected one stock_added event for seller, got %+v", events)
	}
	if len(h.notifier.sent) != 1 || h.notifier.sent[0].UserID != chain.Seller.ID {
		t.Fatalf("expected seller notification, got %+v", h.notifier.sent)
	}
	if len(h.audit.actions) != 1 {
		t.Fatalf("expected one audit entry, got %v", h.audit.actions)
	}

	rows, err := h.svc.ListStock(ctx, chain.Seller.ID)
	if err != nil {
		t.Fatalf("list stock: %v", err)
	}
	if len(rows) != 1 || rows[0].Quantity != 20 {
		t.Fatalf("unexpected stock rows %+v", rows)
	}
}

func TestServiceAddStockRejectsBrokenChain(t *testing.T) {
	h := newServiceHarness(t)
	a := dbtest.SeedChain(t, h.client, "Bandung")
	b := dbtest.SeedChain(t, h.client, "Bogor")

	_, err := h.svc.AddStock(context.Background(), AddStockInput{
		PartnerID:   a.Partner.ID,
		BranchID:    b.Branch.ID,
		SellerID:    b.Seller.ID,
		VoucherType: enums.VoucherMJ1Hari,
		Amount:      5,
	})
	if !pkgerrors.Is(err, pkgerrors.CodeHierarchyMismatch) {
		t.Fatalf("expected hierarchy mismatch, got %v", err)
	}

	var count int64
	h.client.DB().Model(&models.VoucherStock{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no stock rows, got %d", count)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("no notifications expected on failure")
	}
}

func TestServiceAddStockValidatesInput(t *testing.T) {
	h := newServiceHarness(t)
	chain := dbtest.SeedChain(t, h.client, "Depok")

	base := AddStockInput{
		PartnerID:   chain.Partner.ID,
		BranchID:    chain.Branch.ID,
		SellerID:    chain.Seller.ID,
		VoucherType: enums.VoucherMJ1Hari,
		Amount:      1,
	}

	bad := base
	bad.Amount = 0
	if _, err := h.svc.AddStock(context.Background(), bad); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for amount, got %v", err)
	}
	bad = base
	bad.VoucherType = "weekly"
	if _, err := h.svc.AddStock(context.Background(), bad); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for voucher type, got %v", err)
	}
	bad = base
	bad.ActorRole = enums.RoleMitraCabang
	bad.ActorID = uuid.New()
	if _, err := h.svc.AddStock(context.Background(), bad); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign partner, got %v", err)
	}
}
