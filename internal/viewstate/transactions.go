package viewstate

import (
	"context"
	"log/slog"
	"sync"

	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/notify"
)

const MsgDeleteFailed = "Failed to delete transaction"

type TransactionDeleter interface {
	TransactionFeed
	Delete(ctx context.Context, t core.Transaction) error
}

// TransactionsSnapshot is the list screen. When a read fails the previous
// list stays and Message is set.
type TransactionsSnapshot struct {
	Loaded       bool
	Transactions []core.Transaction
	Message      string
}

// TransactionsHolder backs the full transaction list screen.
type TransactionsHolder struct {
	*scope
	repo TransactionDeleter

	mu   sync.RWMutex
	snap TransactionsSnapshot
}

func NewTransactionsHolder(ctx context.Context, repo TransactionDeleter) *TransactionsHolder {
	h := &TransactionsHolder{scope: newScope(ctx), repo: repo}
	h.launch(func(ctx context.Context) error {
		return follow(ctx, repo.WatchAll(ctx), func(r notify.Result[[]core.Transaction]) {
			h.mu.Lock()
			h.snap.Loaded = true
			if r.Err != nil {
				h.snap.Message = MsgTryAgain
			} else {
				h.snap.Transactions = r.Value
				if h.snap.Message == MsgTryAgain {
					h.snap.Message = ""
				}
			}
			h.mu.Unlock()
			h.changed()
		})
	})
	return h
}

func (h *TransactionsHolder) Snapshot() TransactionsSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Delete removes t in the background. The list refreshes through the
// subscription; a failure only sets Message.
func (h *TransactionsHolder) Delete(t core.Transaction) {
	h.launch(func(ctx context.Context) error {
		err := h.repo.Delete(ctx, t)
		h.mu.Lock()
		if err != nil {
			h.snap.Message = MsgDeleteFailed
		} else {
			h.snap.Message = ""
		}
		h.mu.Unlock()
		if err != nil {
			slog.ErrorContext(ctx, "Delete from list failed",
				log.FieldComponent, log.ComponentViewState,
				log.FieldTransactionID, t.ID,
				log.FieldError, err)
		}
		h.changed()
		return nil
	})
}
