package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"daybook/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf}).WithComponent(ComponentStorage)
	l.Info("hello", "k", 1)

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "k=1") {
		t.Fatalf("unexpected output %q", out)
	}
	if l.Component() != ComponentStorage {
		t.Fatalf("Component() = %q", l.Component())
	}
}

func TestFromContext(t *testing.T) {
	l := New(DefaultConfig()).WithComponent(ComponentCLI)
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("FromContext did not return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must fall back to the default logger")
	}
}

func TestWithTransaction(t *testing.T) {
	tx := core.Transaction{
		ID:       3,
		Title:    "Coffee",
		Amount:   decimal.RequireFromString("4.50"),
		Category: "Groceries",
		Date:     core.NewDate(2025, 6, 1),
		Note:     "private",
	}
	f := NewFields().WithTransaction(tx).WithOperation(OpCreate)
	if f[FieldTransactionID] != int64(3) || f[FieldAmountCents] != int64(450) || f[FieldDate] != "2025-06-01" {
		t.Fatalf("fields = %v", f)
	}
	for _, v := range f {
		if v == "private" {
			t.Fatal("note must not be logged")
		}
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length = %d", len(f.ToSlice()))
	}
}
