// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings,
// converting between decimal amounts and stored cents, and rendering
// amounts as locale-aware currency strings.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParseAmount converts a user-typed amount into a decimal with two fraction
// digits.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, exponents, and zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ToCents converts an amount to the integer cents the store persists.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents is the inverse of ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Formatter renders amounts as currency strings for one locale.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a formatter for a BCP 47 locale such as "en-IN".
func NewFormatter(locale, symbol string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), symbol: symbol}, nil
}

// DefaultFormatter formats Indian rupees.
func DefaultFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.MustParse("en-IN")), symbol: "₹"}
}

// Format renders two fraction digits with locale grouping, the symbol first
// and a leading minus for negative amounts: "-₹4.50".
func (f *Formatter) Format(amount decimal.Decimal) string {
	amount = amount.Round(2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + f.symbol + f.printer.Sprintf("%.2f", amount.Abs().InexactFloat64())
}

// Symbol returns the currency symbol this formatter prefixes.
func (f *Formatter) Symbol() string {
	return f.symbol
}

// WithSymbol returns a copy of the formatter using another symbol, for
// outputs that cannot render the default one.
func (f *Formatter) WithSymbol(symbol string) *Formatter {
	return &Formatter{printer: f.printer, symbol: symbol}
}
