package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12.344", "12.34", true},
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	cases := []struct {
		amount string
		cents  int64
	}{
		{"4.50", 450},
		{"50000", 5000000},
		{"0.01", 1},
		{"12.345", 1235},
	}
	for _, tc := range cases {
		d := decimal.RequireFromString(tc.amount)
		if got := ToCents(d); got != tc.cents {
			t.Errorf("ToCents(%s) = %d, want %d", tc.amount, got, tc.cents)
		}
	}
	if !FromCents(450).Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("FromCents(450) = %s", FromCents(450))
	}
}

func TestFormatterFormat(t *testing.T) {
	f, err := NewFormatter("en-IN", "₹")
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}
	cases := []struct {
		in   string
		want string
	}{
		{"4.5", "₹4.50"},
		{"-4.5", "-₹4.50"},
		{"0", "₹0.00"},
		{"35000", "₹35,000.00"},
		{"50000", "₹50,000.00"},
		{"15000", "₹15,000.00"},
		{"999.999", "₹1,000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := f.Format(decimal.RequireFromString(tc.in)); got != tc.want {
				t.Errorf("Format(%s) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatterWithSymbol(t *testing.T) {
	f := DefaultFormatter().WithSymbol("Rs. ")
	if got := f.Format(decimal.NewFromInt(12)); got != "Rs. 12.00" {
		t.Fatalf("got %q", got)
	}
}

func TestNewFormatterBadLocale(t *testing.T) {
	if _, err := NewFormatter("not a locale!", "$"); err == nil {
		t.Fatal("expected error for malformed locale")
	}
}
