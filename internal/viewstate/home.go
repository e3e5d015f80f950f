package viewstate

import (
	"context"
	"log/slog"
	"sync"

	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/notify"
)

// RecentLimit is how many transactions the home screen lists as recent.
const RecentLimit = 5

type (
	// TransactionFeed streams the full transaction list.
	TransactionFeed interface {
		WatchAll(ctx context.Context) <-chan notify.Result[[]core.Transaction]
	}

	ThemeStore interface {
		WatchDarkTheme(ctx context.Context) <-chan notify.Result[bool]
		SetDarkTheme(ctx context.Context, dark bool) error
	}

	ProfileReader interface {
		Profile(ctx context.Context) (core.Profile, error)
	}
)

// HomeFilter selects how the home list is grouped and, when Day is set,
// which single day it shows.
type HomeFilter struct {
	GroupBy core.GroupKey
	Day     core.Date
}

// HomeSnapshot is what the home screen renders. Totals always cover every
// transaction; Transactions and Groups honour the filter. Message is set
// when a read failed; the fields it would have refreshed keep their last
// values.
type HomeSnapshot struct {
	Loaded       bool
	ProfileKnown bool
	Username     string
	ThemeKnown   bool
	DarkTheme    bool
	Filter       HomeFilter
	Transactions []core.Transaction
	Groups       []core.Group
	Recent       []core.Transaction
	Balance      string
	Income       string
	Expense      string
	Message      string
}

type HomeHolder struct {
	*scope
	themes    ThemeStore
	formatter *core.Formatter

	mu   sync.RWMutex
	all  []core.Transaction
	snap HomeSnapshot
}

// NewHomeHolder subscribes to transactions and the theme flag independently
// and loads the profile once.
func NewHomeHolder(ctx context.Context, feed TransactionFeed, themes ThemeStore, profiles ProfileReader, formatter *core.Formatter) *HomeHolder {
	if formatter == nil {
		formatter = core.DefaultFormatter()
	}
	h := &HomeHolder{scope: newScope(ctx), themes: themes, formatter: formatter}
	h.snap = h.derive(nil, HomeSnapshot{})

	h.launch(func(ctx context.Context) error {
		return follow(ctx, feed.WatchAll(ctx), h.applyTransactions)
	})
	h.launch(func(ctx context.Context) error {
		return follow(ctx, themes.WatchDarkTheme(ctx), h.applyTheme)
	})
	h.launch(func(ctx context.Context) error {
		p, err := profiles.Profile(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Profile load failed",
				log.FieldComponent, log.ComponentViewState,
				log.FieldError, err)
		}
		h.mu.Lock()
		h.snap.ProfileKnown = true
		h.snap.Username = p.Username
		if err != nil {
			h.snap.Message = MsgTryAgain
		}
		h.mu.Unlock()
		h.changed()
		return nil
	})
	return h
}

func (h *HomeHolder) Snapshot() HomeSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// SetFilter regroups the current list without touching the store.
func (h *HomeHolder) SetFilter(f HomeFilter) {
	h.mu.Lock()
	prev := h.snap
	prev.Filter = f
	h.snap = h.derive(h.all, prev)
	h.mu.Unlock()
	h.changed()
}

// ToggleTheme flips the persisted dark-theme flag. The snapshot follows
// once the store reports the new value.
func (h *HomeHolder) ToggleTheme(ctx context.Context) error {
	h.mu.RLock()
	dark := h.snap.DarkTheme
	h.mu.RUnlock()
	return h.themes.SetDarkTheme(ctx, !dark)
}

func (h *HomeHolder) applyTransactions(r notify.Result[[]core.Transaction]) {
	h.mu.Lock()
	prev := h.snap
	prev.Loaded = true
	if r.Err != nil {
		prev.Message = MsgTryAgain
		h.snap = prev
	} else {
		h.all = r.Value
		prev.Message = ""
		h.snap = h.derive(r.Value, prev)
	}
	h.mu.Unlock()
	h.changed()
}

func (h *HomeHolder) applyTheme(r notify.Result[bool]) {
	h.mu.Lock()
	h.snap.ThemeKnown = true
	if r.Err != nil {
		h.snap.Message = MsgTryAgain
	} else {
		h.snap.DarkTheme = r.Value
	}
	h.mu.Unlock()
	h.changed()
}

// derive rebuilds the list-dependent fields of prev from list.
func (h *HomeHolder) derive(list []core.Transaction, prev HomeSnapshot) HomeSnapshot {
	totals := core.ComputeTotals(list)
	prev.Balance = h.formatter.Format(totals.Balance)
	prev.Income = h.formatter.Format(totals.Income)
	prev.Expense = h.formatter.Format(totals.Expense)

	shown := list
	if !prev.Filter.Day.IsZero() {
		shown = core.FilterByDay(list, prev.Filter.Day)
	}
	prev.Transactions = shown
	prev.Groups = core.GroupTransactions(shown, prev.Filter.GroupBy)

	n := min(len(list), RecentLimit)
	prev.Recent = list[:n:n]
	return prev
}
