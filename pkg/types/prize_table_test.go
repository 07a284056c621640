package types

import "testing"

func TestNewPrizeTableOrdersByPosition(t *testing.T) {
	table := NewPrizeTable(map[int]string{3: "C", 1: "A", 2: "B"})
	for i, want := range []string{"A", "B", "C"} {
		if table[i].Position != i+1 || table[i].Prize != want {
			t.Fatalf("entry %d: got %+v", i, table[i])
		}
	}
	if prize, ok := table.PrizeFor(2); !ok || prize != "B" {
		t.Fatalf("expected prize B at 2, got %q (%v)", prize, ok)
	}
	if _, ok := table.PrizeFor(4); ok {
		t.Fatalf("position 4 should be unconfigured")
	}
}

func TestPrizeTableScanAcceptsTextAndBytes(t *testing.T) {
	var fromText PrizeTable
	if err := fromText.Scan(`[{"position":2,"prize":"B"},{"position":1,"prize":"A"}]`); err != nil {
		t.Fatalf("scan text: %v", err)
	}
	if fromText[0].Prize != "A" {
		t.Fatalf("expected scan to sort entries, got %+v", fromText)
	}

	var fromBytes PrizeTable
	if err := fromBytes.Scan([]byte(`[{"position":1,"prize":"Gold"}]`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if prize, _ := fromBytes.PrizeFor(1); prize != "Gold" {
		t.Fatalf("unexpected prize %q", prize)
	}

	if err := fromBytes.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestPrizeTableValueOfNil(t *testing.T) {
	var empty PrizeTable
	v, err := empty.Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected empty json array, got %v (%v)", v, err)
	}
}
