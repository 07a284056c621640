package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
)

func TestCreateThenValidateOffline(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}

	if err := run(context.Background(), dir, []string{"create", "add payout batches"}, out); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(out.String(), "created ") {
		t.Fatalf("unexpected output %q", out.String())
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*_add_payout_batches.sql"))
	if len(files) != 1 {
		t.Fatalf("expected one migration file, got %v", files)
	}

	out.Reset()
	if err := run(context.Background(), dir, []string{"validate"}, out); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "oops.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), dir, []string{"validate"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestRunRejectsMissingCommand(t *testing.T) {
	if err := run(context.Background(), t.TempDir(), nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected usage error")
	}
	if err := run(context.Background(), t.TempDir(), []string{"create"}, &bytes.Buffer{}); err == nil {
		t.Fatal("create without a name must fail")
	}
}

func TestPrintStatus(t *testing.T) {
	out := &bytes.Buffer{}
	rows := []migrate.Status{
		{Version: 20260105090000, Path: "20260105090000_create_hierarchy_nodes.sql", Applied: true, AppliedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)},
		{Version: 20260105090100, Path: "20260105090100_create_voucher_stocks.sql"},
	}
	if err := printStatus(out, rows); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "2026-01-05T09:00:00Z") || !strings.Contains(out.String(), "pending") {
		t.Fatalf("unexpected status table:\n%s", out.String())
	}
}
