package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"daybook/internal/config"
	"daybook/internal/core"
	"daybook/internal/services"

	"github.com/shopspring/decimal"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DBPath:               filepath.Join(dir, "daybook.db"),
		PrefsDir:             filepath.Join(dir, "prefs"),
		ExportDir:            filepath.Join(dir, "exports"),
		LogLevel:             "info",
		CurrencyLocale:       "en-IN",
		CurrencySymbol:       "₹",
		MaxTransactionAmount: decimal.NewFromInt(50000),
		ReportWindowDays:     7,
		ReportCacheSize:      4,
		ReportCacheTTL:       time.Minute,
	}
}

func TestNewWiresStores(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Feed != nil || a.Sheets != nil {
		t.Error("optional integrations should be off")
	}

	coffee := core.NewTransaction("Coffee", decimal.RequireFromString("4.50"), core.Today(), "Food")
	if res, err := a.Transactions.Insert(ctx, coffee); err != nil || res != services.InsertSuccess {
		t.Fatalf("Insert = %v, %v", res, err)
	}
	rows, err := a.Transactions.LastDaysSummary(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("summary = %v, %v", rows, err)
	}
	path, err := a.PDF.Export(ctx, rows)
	if err != nil {
		t.Fatalf("PDF export: %v", err)
	}
	if filepath.Dir(path) != cfg.ExportDir {
		t.Errorf("exported to %s", path)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Data survives a restart.
	again, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	list, err := again.Transactions.All(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("after reopen: %d rows, %v", len(list), err)
	}
}

func TestNewRejectsBadLocale(t *testing.T) {
	cfg := testConfig(t)
	cfg.CurrencyLocale = "not a locale"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSkipsBrokenSheets(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleSpreadsheetID = "abc"
	cfg.GoogleServiceAccountFile = filepath.Join(t.TempDir(), "missing.json")

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.Sheets != nil {
		t.Error("sheets export should stay disabled when credentials are unreadable")
	}
}
