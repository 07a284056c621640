package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestVoucherStockMigrationForbidsNegativeQuantity(t *testing.T) {
	assertContains(t, readMigration(t, "create_voucher_stocks"), []string{
		"CREATE TABLE IF NOT EXISTS voucher_stocks",
		"PRIMARY KEY (seller_id, voucher_type)",
		"CHECK (quantity >= 0)",
		"DROP TABLE IF EXISTS voucher_stocks",
	})
}

func TestPricingRuleMigrationEnforcesRuleInvariant(t *testing.T) {
	assertContains(t, readMigration(t, "create_pricing_rules"), []string{
		"sell_price > base_price",
		"branch_share <= sell_price",
		"fee_seller_pct + fee_branch_pct + partner_commission_pct <= 100",
	})
}

func TestLoyaltyMigrationAllowsSingleDefault(t *testing.T) {
	assertContains(t, readMigration(t, "create_loyalty_campaigns"), []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_loyalty_campaigns_single_default",
		"WHERE is_default",
		"DROP TABLE IF EXISTS customer_coupons",
	})
}

func TestGiftClaimMigrationIsUniquePerCampaignUser(t *testing.T) {
	assertContains(t, readMigration(t, "create_gift_campaigns"), []string{
		"CONSTRAINT ux_gift_claims_campaign_user UNIQUE (campaign_id, user_id)",
		"status IN ('pending', 'approved', 'rejected')",
		"status IN ('active', 'completed', 'cancelled')",
	})
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(migrate.Sources()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Sources(), "*.sql")
	if err != nil || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d files, disk has %d (%v)", len(embedded), len(onDisk), err)
	}
}
