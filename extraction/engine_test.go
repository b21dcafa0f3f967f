package extraction

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExtractSingleHighConfidenceEntry(t *testing.T) {
	result := Extract(DefaultConfig(), "Paracetamol 500mg", "GSK $12.50 3 abril")

	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	entry := result.Entries[0]
	if !entry.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("amount = %s", entry.Amount)
	}
	if entry.Supplier != "GSK" {
		t.Fatalf("supplier = %q", entry.Supplier)
	}
	if !entry.HasMonth || entry.Month != time.April || entry.Day != 3 {
		t.Fatalf("date = day %d month %v hasMonth %v", entry.Day, entry.Month, entry.HasMonth)
	}
	if entry.Confidence != ConfidenceHigh {
		t.Fatalf("confidence = %v", entry.Confidence)
	}
	if result.RequiresManualReview {
		t.Fatal("single high-confidence entry should not need review")
	}
	if result.SelectedCost == nil || !result.SelectedCost.Equal(entry.Amount) {
		t.Fatalf("selected cost = %v", result.SelectedCost)
	}
}

func TestExtractMultipleEntriesSelectsLastAndFlagsReview(t *testing.T) {
	result := Extract(DefaultConfig(), "Ibuprofeno", "L $20.00 abril\nRx $25 mayo")

	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if !result.RequiresManualReview {
		t.Fatal("multiple entries must require review")
	}
	if result.SelectedCost == nil || !result.SelectedCost.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("selected cost = %v, want 25", result.SelectedCost)
	}
	if result.Entries[0].Month != time.April || result.Entries[1].Month != time.May {
		t.Fatalf("months = %v, %v", result.Entries[0].Month, result.Entries[1].Month)
	}
}

func TestExtractNoEntriesRequiresReview(t *testing.T) {
	result := Extract(DefaultConfig(), "Vendas elasticas", "caja de 10 unidades")
	if len(result.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(result.Entries))
	}
	if !result.RequiresManualReview {
		t.Fatal("no entries must require review")
	}
	if result.SelectedCost != nil {
		t.Fatalf("selected cost = %v, want nil", result.SelectedCost)
	}
}

func TestExtractLowConfidenceRequiresReview(t *testing.T) {
	// Amount only: no supplier run, no date.
	result := Extract(DefaultConfig(), "", "$15.00")
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	if result.Entries[0].Confidence != ConfidenceLow {
		t.Fatalf("confidence = %v", result.Entries[0].Confidence)
	}
	if result.Entries[0].Supplier != DefaultSupplier {
		t.Fatalf("supplier = %q, want %q", result.Entries[0].Supplier, DefaultSupplier)
	}
	if !result.RequiresManualReview {
		t.Fatal("single low-confidence entry must require review")
	}
}

func TestExtractAmountBounds(t *testing.T) {
	result := Extract(DefaultConfig(), "", "Lab $99999.00 abril")
	if len(result.Entries) != 0 {
		t.Fatalf("out-of-range amount must be rejected, got %d entries", len(result.Entries))
	}
	if len(result.Errors) == 0 {
		t.Fatal("rejected amount should leave a note")
	}
}

func TestExtractCommaDecimalSeparator(t *testing.T) {
	result := Extract(DefaultConfig(), "", "Bayer $12,75 mayo")
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	if !result.Entries[0].Amount.Equal(decimal.RequireFromString("12.75")) {
		t.Fatalf("amount = %s", result.Entries[0].Amount)
	}
}

func TestExtractMonthTypos(t *testing.T) {
	cases := map[string]time.Month{
		"aprl":      time.April,
		"avril":     time.April,
		"setiembre": time.September,
		"desiembre": time.December,
	}
	for token, want := range cases {
		result := Extract(DefaultConfig(), "", "Lab $10 "+token)
		if len(result.Entries) != 1 {
			t.Fatalf("%s: expected 1 entry, got %d", token, len(result.Entries))
		}
		if result.Entries[0].Month != want {
			t.Fatalf("%s: month = %v, want %v", token, result.Entries[0].Month, want)
		}
	}
}

func TestExtractNumericDate(t *testing.T) {
	result := Extract(DefaultConfig(), "", "Pfizer 12/4/24 $30.00")
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	entry := result.Entries[0]
	if entry.Day != 12 || entry.Month != time.April || entry.Year != 2024 {
		t.Fatalf("date = %d/%v/%d", entry.Day, entry.Month, entry.Year)
	}
}

func TestExtractRejectsImpossibleNumericDate(t *testing.T) {
	result := Extract(DefaultConfig(), "", "Pfizer 40/15 $30.00")
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	if result.Entries[0].HasMonth {
		t.Fatal("40/15 is not a date")
	}
}

func TestExtractSkipPrefixes(t *testing.T) {
	result := Extract(DefaultConfig(), "", "formula magistral $50.00 abril\nBayer $12 mayo")
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry after skipping, got %d", len(result.Entries))
	}
	if !result.Entries[0].Amount.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("amount = %s", result.Entries[0].Amount)
	}
}

func TestMergeLinesFoldsMonthFragment(t *testing.T) {
	cfg := DefaultConfig()
	lines := mergeLines(cfg, "Bayer $12.00\n3 abril\notra linea")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "Bayer $12.00 3 abril" {
		t.Fatalf("merged line = %q", lines[0])
	}
}

func TestMergeLinesDoesNotFoldWithoutCurrency(t *testing.T) {
	cfg := DefaultConfig()
	lines := mergeLines(cfg, "sin precio\nabril")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
}

func TestParseSupplierLimits(t *testing.T) {
	cfg := DefaultConfig()
	if got := parseSupplier(cfg, "una etiqueta de proveedor demasiado larga "); got == "una etiqueta de proveedor demasiado larga" {
		t.Fatalf("supplier run must be bounded, got %q", got)
	}
	if got := parseSupplier(cfg, "123 456 "); got != DefaultSupplier {
		t.Fatalf("numeric-only label = %q, want %q", got, DefaultSupplier)
	}
	if got := parseSupplier(cfg, ""); got != DefaultSupplier {
		t.Fatalf("empty prefix = %q, want %q", got, DefaultSupplier)
	}
}

func TestExtractDeterministic(t *testing.T) {
	name := "Amoxicilina"
	description := "GSK $8.25 2 junio\nBayer $9,10 julio\n$7 sin datos"
	first := Extract(DefaultConfig(), name, description)
	for i := 0; i < 10; i++ {
		again := Extract(DefaultConfig(), name, description)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestSortedAliasesLongestFirst(t *testing.T) {
	aliases := sortedAliases(defaultMonthAliases())
	for i := 1; i < len(aliases); i++ {
		if len(aliases[i-1]) < len(aliases[i]) {
			t.Fatalf("aliases not longest-first at %d: %q before %q", i, aliases[i-1], aliases[i])
		}
	}
}
