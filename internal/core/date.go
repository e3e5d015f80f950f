package core

import (
	"errors"
	"strings"
	"time"
)

// Layouts used for transaction dates.
const (
	EntryLayout    = "02/01/2006"   // what users type
	StorageLayout  = "2006-01-02"   // what the store persists, sorts lexically
	HumanLayout    = "Jan 02, 2006" // group headings
	DayMonthLayout = "02/Jan"       // chart axis
)

var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day without a time component, always in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate accepts both the entry form (05/01/2025) and the storage form
// (2025-01-05).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	for _, layout := range []string{EntryLayout, StorageLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// String renders the storage form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(StorageLayout)
}

// Human renders the heading form, e.g. "Jan 05, 2025".
func (d Date) Human() string {
	return d.Format(HumanLayout)
}

// DayMonth renders the chart label form, e.g. "05/Jan".
func (d Date) DayMonth() string {
	return d.Format(DayMonthLayout)
}

// Entry renders the form users type.
func (d Date) Entry() string {
	return d.Format(EntryLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// SameDay compares calendar days only.
func (d Date) SameDay(o Date) bool {
	return d.String() == o.String()
}
