package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupKey selects how transactions are bucketed for display.
type GroupKey int

const (
	GroupByDate GroupKey = iota
	GroupByCategory
)

func (k GroupKey) String() string {
	switch k {
	case GroupByCategory:
		return "category"
	default:
		return "date"
	}
}

// ParseGroupKey maps "date" or "category" to a GroupKey.
func ParseGroupKey(s string) (GroupKey, bool) {
	switch s {
	case "date", "":
		return GroupByDate, true
	case "category":
		return GroupByCategory, true
	}
	return GroupByDate, false
}

type (
	// Group is a display bucket. Total sums the unsigned amounts.
	Group struct {
		Key   string
		Items []Transaction
		Total decimal.Decimal
	}

	Totals struct {
		Income  decimal.Decimal
		Expense decimal.Decimal
		Balance decimal.Decimal
	}

	SummaryGroup struct {
		Key   string
		Rows  []Summary
		Total decimal.Decimal
	}

	// ChartPoint is one bar of the per-day report chart.
	ChartPoint struct {
		Date  Date
		Label string
		Total decimal.Decimal
	}
)

func TotalIncome(list []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range list {
		if t.IsIncome() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func TotalExpense(list []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range list {
		if !t.IsIncome() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// Balance is income minus expense; it may be negative.
func Balance(list []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range list {
		total = total.Add(t.Signed())
	}
	return total
}

// ComputeTotals walks the list once.
func ComputeTotals(list []Transaction) Totals {
	var tt Totals
	for _, t := range list {
		if t.IsIncome() {
			tt.Income = tt.Income.Add(t.Amount)
		} else {
			tt.Expense = tt.Expense.Add(t.Amount)
		}
	}
	tt.Balance = tt.Income.Sub(tt.Expense)
	return tt
}

// GroupTransactions buckets list by key. Groups appear in the order their
// first member appears in list, and members keep their relative order.
func GroupTransactions(list []Transaction, key GroupKey) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, t := range list {
		k := transactionKey(t, key)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Total: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, t)
		groups[i].Total = groups[i].Total.Add(t.Amount)
	}
	return groups
}

func transactionKey(t Transaction, key GroupKey) string {
	if key == GroupByCategory {
		return t.Category
	}
	return t.Date.Human()
}

// FilterByDay keeps the transactions dated on day.
func FilterByDay(list []Transaction, day Date) []Transaction {
	out := make([]Transaction, 0, len(list))
	for _, t := range list {
		if t.Date.SameDay(day) {
			out = append(out, t)
		}
	}
	return out
}

// GroupSummaries buckets report rows by day or by category, preserving
// first-appearance order.
func GroupSummaries(rows []Summary, key GroupKey) []SummaryGroup {
	index := make(map[string]int)
	var groups []SummaryGroup
	for _, r := range rows {
		k := r.Category
		if key == GroupByDate {
			k = r.Date.Human()
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, SummaryGroup{Key: k, Total: decimal.Zero})
		}
		groups[i].Rows = append(groups[i].Rows, r)
		groups[i].Total = groups[i].Total.Add(r.Total)
	}
	return groups
}

// ChartPoints sums report rows per day. Rows are expected in ascending date
// order, as the store returns them.
func ChartPoints(rows []Summary) []ChartPoint {
	var points []ChartPoint
	for _, r := range rows {
		n := len(points)
		if n > 0 && points[n-1].Date.SameDay(r.Date) {
			points[n-1].Total = points[n-1].Total.Add(r.Total)
			continue
		}
		points = append(points, ChartPoint{Date: r.Date, Label: r.Date.DayMonth(), Total: r.Total})
	}
	return points
}

// SummaryTotal sums all report rows.
func SummaryTotal(rows []Summary) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Total)
	}
	return total
}

// ReportWindow returns the inclusive day range ending today that spans days
// calendar days. days below 1 is treated as 1.
func ReportWindow(now time.Time, days int) (from, to Date) {
	if days < 1 {
		days = 1
	}
	to = DateOf(now)
	return to.AddDays(-(days - 1)), to
}
