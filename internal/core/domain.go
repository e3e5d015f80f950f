package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IncomeCategory is the one category whose amounts count as income.
// Every other category is an expense.
const IncomeCategory = "Income"

// DefaultMaxAmount is the upper bound accepted for a single transaction.
const DefaultMaxAmount = 50000

const maxTitleLength = 200

type (
	Transaction struct {
		ID         int64 // 0 until the store assigns one
		Title      string
		Amount     decimal.Decimal
		Date       Date
		Category   string
		Note       string
		ReceiptRef string // optional path or URL of a receipt image
		CreatedAt  time.Time
	}

	// Summary is one (category, date) bucket of the report window.
	Summary struct {
		Category string
		Date     Date
		Total    decimal.Decimal
	}

	User struct {
		Username string
		Password string
	}

	// Profile is what the session store keeps about the logged-in user.
	// The password never leaves the user table.
	Profile struct {
		Username string `json:"username"`
	}
)

var (
	ErrEmptyTitle     = errors.New("empty title")
	ErrTitleTooLong   = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountTooLarge = errors.New("amount too large")
	ErrMissingDate    = errors.New("missing date")
	ErrEmptyCategory  = errors.New("empty category")
)

// NewTransaction builds an unsaved transaction stamped with the current time.
func NewTransaction(title string, amount decimal.Decimal, date Date, category string) Transaction {
	return Transaction{
		Title:     strings.TrimSpace(title),
		Amount:    amount,
		Date:      date,
		Category:  category,
		CreatedAt: time.Now(),
	}
}

// IsIncome reports whether the transaction is classified as income.
func (t Transaction) IsIncome() bool {
	return t.Category == IncomeCategory
}

// Signed returns the amount with the sign it contributes to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.IsIncome() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Validate checks the transaction against DefaultMaxAmount.
func (t Transaction) Validate() error {
	return t.ValidateWithLimit(decimal.NewFromInt(DefaultMaxAmount))
}

func (t Transaction) ValidateWithLimit(max decimal.Decimal) error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Amount.GreaterThan(max) {
		return ErrAmountTooLarge
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsIncome reports whether the summary bucket is the income category.
func (s Summary) IsIncome() bool {
	return s.Category == IncomeCategory
}

// IsEmpty is true for the placeholder profile returned when nobody is logged in.
func (p Profile) IsEmpty() bool {
	return p.Username == ""
}
