package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"daybook/internal/core"
	"daybook/internal/viewstate"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeTransactions(w io.Writer, list []core.Transaction, f *core.Formatter) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No transactions yet")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tCATEGORY\tAMOUNT\tNOTE")
	for _, t := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Date.Entry(), t.Title, t.Category, f.Format(t.Signed()), t.Note)
	}
	tw.Flush()
}

func writeHome(w io.Writer, s viewstate.HomeSnapshot, f *core.Formatter) {
	if s.Username != "" {
		fmt.Fprintf(w, "Hello, %s\n\n", s.Username)
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Balance\t%s\n", s.Balance)
	fmt.Fprintf(tw, "Income\t%s\n", s.Income)
	fmt.Fprintf(tw, "Expense\t%s\n", s.Expense)
	tw.Flush()

	if len(s.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent")
		tw = newTable(w)
		for _, t := range s.Recent {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.Date.Human(), t.Title, f.Format(t.Signed()))
		}
		tw.Flush()
	}

	if !s.Filter.Day.IsZero() {
		fmt.Fprintf(w, "\nTransactions on %s\n", s.Filter.Day.Human())
	}
	if len(s.Groups) == 0 {
		fmt.Fprintln(w, "\nNo transactions")
		return
	}
	for _, g := range s.Groups {
		fmt.Fprintf(w, "\n%s (%s)\n", g.Key, f.Format(g.Total))
		tw = newTable(w)
		for _, t := range g.Items {
			label := t.Category
			if s.Filter.GroupBy == core.GroupByCategory {
				label = t.Date.Human()
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.Title, label, f.Format(t.Signed()))
		}
		tw.Flush()
	}
}

func writeReport(w io.Writer, s viewstate.ReportSnapshot, key core.GroupKey, days int, f *core.Formatter) {
	fmt.Fprintf(w, "Expense Report (Last %d Days)\n", days)
	if len(s.Rows) == 0 {
		fmt.Fprintln(w, "No expenses in this period")
		return
	}

	groups := s.ByDate
	if key == core.GroupByCategory {
		groups = s.ByCategory
	}
	for _, g := range groups {
		fmt.Fprintf(w, "\n%s (%s)\n", g.Key, f.Format(g.Total))
		tw := newTable(w)
		for _, r := range g.Rows {
			label := r.Category
			if key == core.GroupByCategory {
				label = r.Date.Human()
			}
			fmt.Fprintf(tw, "  %s\t%s\n", label, f.Format(r.Total))
		}
		tw.Flush()
	}

	fmt.Fprintln(w, "\nPer day")
	tw := newTable(w)
	for _, p := range s.Chart {
		fmt.Fprintf(tw, "  %s\t%s\n", p.Label, f.Format(p.Total))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal %s\n", s.Total)
}
