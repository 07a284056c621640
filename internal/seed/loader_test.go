package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
)

const fixtureYAML = `
nodes:
  - name: Owner
    role: Owner
  - name: Bogor Partner
    role: MitraCabang
    children:
      - name: Bogor Branch
        role: Cabang
        pricing:
          - voucherType: MJ_1hari
            basePrice: 10000
            sellPrice: 20000
            branchShare: 4000
            feeSellerPct: "5"
            feeBranchPct: "10"
            partnerCommissionPct: "5"
        children:
          - name: Bogor Seller
            role: Link
            stock:
              MJ_1hari: 40
              JM_2jam: 10
`

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, notifications.Message) {}

type nopAudit struct{}

func (nopAudit) Append(context.Context, *uuid.UUID, string, string) {}

func TestParseRejectsMisplacedSections(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "nodes:\n  - name: X\n    role: Owner\n    colour: red\n",
		"bad role":        "nodes:\n  - name: X\n    role: Boss\n",
		"stock on branch": "nodes:\n  - name: X\n    role: Cabang\n    stock: {MJ_1hari: 1}\n",
		"bad voucher":     "nodes:\n  - name: X\n    role: Link\n    stock: {MJ_2jam: 1}\n",
		"empty":           "nodes: []\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestLoaderIsRepeatable(t *testing.T) {
	client := dbtest.Open(t)
	dir, err := hierarchy.NewDirectory(hierarchy.NewRepository(client.DB()))
	require.NoError(t, err)
	catalog, err := pricing.NewCatalog(pricing.NewRepository(client.DB()))
	require.NoError(t, err)
	stockRepo := stock.NewRepository(client.DB())
	ledger, err := stock.NewLedger(stockRepo)
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.ServiceParams{
		DB:        client,
		Repo:      stockRepo,
		Ledger:    ledger,
		Directory: dir,
		Outbox:    outbox.NewWriter(outbox.NewRepository(client.DB()), nil),
		Notifier:  nopNotifier{},
		Audit:     nopAudit{},
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	loader, err := NewLoader(LoaderParams{Directory: dir, Pricing: catalog, Stock: stockSvc, Logger: logger.Nop()})
	require.NoError(t, err)

	fixture, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := loader.Load(ctx, fixture)
	require.NoError(t, err)
	require.Equal(t, Summary{NodesCreated: 4, PricesStored: 1, StockUnits: 50}, first)

	second, err := loader.Load(ctx, fixture)
	require.NoError(t, err)
	require.Equal(t, Summary{NodesExisting: 4, PricesStored: 1}, second)

	seller, err := dir.ResolveName(ctx, enums.RoleLink, "Bogor Seller", nil)
	require.NoError(t, err)
	rows, err := stockSvc.ListStock(ctx, seller.ID)
	require.NoError(t, err)
	byType := map[enums.VoucherType]int{}
	for _, r := range rows {
		byType[r.VoucherType] = r.Quantity
	}
	require.Equal(t, map[enums.VoucherType]int{enums.VoucherMJ1Hari: 40, enums.VoucherJM2Jam: 10}, byType)

	var rules int64
	require.NoError(t, client.DB().Model(&models.PricingRule{}).Count(&rules).Error)
	require.EqualValues(t, 1, rules)
}
