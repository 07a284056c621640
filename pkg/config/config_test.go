package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// baseEnv sets the smallest environment Load accepts.
func baseEnv(t *testing.T) {
	t.Helper()
	for key, value := range map[string]string{
		EnvAppEnv:      "prod",
		EnvPort:        "8081",
		EnvDBDSN:       "postgres://ledger:pw@localhost:5432/vouchernet?sslmode=disable",
		EnvRedisURL:    "redis://localhost:6379/0",
		EnvJWTSecret:   "s3cret",
		EnvJWTIssuer:   "vouchernet-identity",
		EnvLedgerTopic: "vn-ledger",
	} {
		t.Setenv(key, value)
	}
}

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		// t.Setenv first so the original value is restored after the test.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadAppliesLedgerAndWorkerDefaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.App.IsProd() || cfg.PubSub.LedgerTopic != "vn-ledger" {
		t.Fatalf("env values not applied: %+v %+v", cfg.App, cfg.PubSub)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"low stock threshold", cfg.Ledger.LowStockThreshold, 10},
		{"loyalty threshold", cfg.Ledger.LoyaltyThreshold, 10},
		{"import max rows", cfg.Ledger.ImportMaxRows, 5000},
		{"side effect timeout", cfg.Ledger.SideEffectTimeout, 5 * time.Second},
		{"close grace", cfg.Ledger.CampaignCloseGrace, 72 * time.Hour},
		{"cron tick", cfg.Cron.Tick, time.Minute},
		{"closeout cadence", cfg.Cron.CampaignCloseoutEvery, time.Hour},
		{"slow query", cfg.DB.SlowQuery, 250 * time.Millisecond},
		{"tx retries", cfg.DB.TxRetries, 3},
		{"outbox attempts", cfg.Outbox.MaxAttempts, 10},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]struct {
		prepare func(t *testing.T)
		mention string
	}{
		"missing app env": {
			prepare: func(t *testing.T) { unset(t, EnvAppEnv) },
			mention: EnvAppEnv,
		},
		"no dsn and no parts": {
			prepare: func(t *testing.T) { unset(t, EnvDBDSN) },
			mention: EnvDBDSN,
		},
		"zero loyalty threshold": {
			prepare: func(t *testing.T) { t.Setenv(EnvLoyaltyThreshold, "0") },
			mention: EnvLoyaltyThreshold,
		},
		"negative low stock threshold": {
			prepare: func(t *testing.T) { t.Setenv(EnvLowStockThreshold, "-1") },
			mention: EnvLowStockThreshold,
		},
		"zero import rows": {
			prepare: func(t *testing.T) { t.Setenv(EnvImportMaxRows, "0") },
			mention: EnvImportMaxRows,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			baseEnv(t)
			tc.prepare(t)
			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Fatalf("expected error to name %s, got %v", tc.mention, err)
			}
		})
	}
}

func TestLoadComposesDSNFromParts(t *testing.T) {
	baseEnv(t)
	unset(t, EnvDBDSN)
	t.Setenv(EnvDBHost, "pg.internal")
	t.Setenv(EnvDBUser, "ledger")
	t.Setenv(EnvDBName, "vouchernet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := "postgres://ledger@pg.internal:5432/vouchernet?sslmode=disable"; cfg.DB.DSN != want {
		t.Fatalf("dsn = %q, want %q", cfg.DB.DSN, want)
	}
}

func TestLoadSQLiteNeedsNoDSN(t *testing.T) {
	baseEnv(t)
	unset(t, EnvDBDSN)
	t.Setenv(EnvUseSQLite, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB.DSN != "" || !cfg.FeatureFlags.UseSQLite {
		t.Fatalf("expected sqlite mode without dsn, got %+v", cfg.DB)
	}
}

func TestPubSubTopicsDeduplicates(t *testing.T) {
	got := PubSubConfig{LedgerTopic: " vn-events ", CampaignTopic: "vn-events", NotificationTopic: "vn-inbox"}.Topics()
	if want := []string{"vn-events", "vn-inbox"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	if got := (PubSubConfig{}).Topics(); len(got) != 0 {
		t.Fatalf("expected no topics, got %v", got)
	}
}

func TestAppEnvIsCaseInsensitive(t *testing.T) {
	if !(AppConfig{Env: "DEV"}).IsDev() || (AppConfig{Env: "DEV"}).IsProd() {
		t.Fatal("DEV should be dev only")
	}
	if !(AppConfig{Env: "Prod"}).IsProd() || (AppConfig{Env: "Prod"}).IsDev() {
		t.Fatal("Prod should be prod only")
	}
}
