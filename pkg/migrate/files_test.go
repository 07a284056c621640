package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestCreateWritesTimestampedTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := Create(dir, "Add Partner Payouts!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260304050607_add_partner_payouts.sql" {
		t.Fatalf("unexpected file name %s", path)
	}
	if _, err := Create(dir, "add partner payouts", now); err == nil {
		t.Fatal("second create with the same timestamp must fail")
	}
	if err := Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated file should validate: %v", err)
	}
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	if _, err := Create(t.TempDir(), " ?! ", time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateCatchesBrokenFiles(t *testing.T) {
	good := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {"create_things.sql": {Data: []byte(good)}},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte(good)},
			"20260101000000_b.sql": {Data: []byte(good)},
		},
		"no down":    {"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"unbalanced": {"20260101000000_a.sql": {Data: []byte(good + "-- +goose StatementBegin\n")}},
	}
	for name, fsys := range cases {
		if err := Validate(fsys); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := Validate(fstest.MapFS{"20260101000000_a.sql": {Data: []byte(good)}}); err != nil {
		t.Fatalf("valid file rejected: %v", err)
	}
	if !strings.Contains(migrationTemplate, "-- +goose Down") {
		t.Fatal("template lost its down section")
	}
}
