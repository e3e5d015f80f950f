package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"daybook/internal/amqp"
	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/notify"
)

// ErrStorage wraps every failure coming out of the stores, so callers can
// tell "the store broke" from validation or auth outcomes.
var ErrStorage = errors.New("storage failure")

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// InsertResult is the outcome of TransactionService.Insert.
type InsertResult int

const (
	InsertSuccess InsertResult = iota
	InsertAlreadyExists
	InsertError
)

func (r InsertResult) String() string {
	switch r {
	case InsertSuccess:
		return "success"
	case InsertAlreadyExists:
		return "already_exists"
	default:
		return "error"
	}
}

// TransactionStore is the persistence the service needs; the SQLite
// repository implements it.
type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	InsertIfAbsent(ctx context.Context, t core.Transaction) (int64, bool, error)
	DeleteTransaction(ctx context.Context, id int64) error
	DeleteAllTransactions(ctx context.Context) (int64, error)
	SummaryByCategoryDate(ctx context.Context, from, to core.Date, includeIncome bool) ([]core.Summary, error)
	TopExpenses(ctx context.Context, limit int) ([]core.Transaction, error)
}

// ChangePublisher forwards committed changes to other processes.
type ChangePublisher interface {
	PublishTransactionChange(ctx context.Context, op amqp.ChangeOp, transactionID int64) error
}

type ReportOptions struct {
	WindowDays    int
	IncludeIncome bool
}

// TransactionService is the transaction repository seen by the view-state
// layer: writes with duplicate detection, and live queries that re-emit on
// every committed change.
type TransactionService struct {
	store     TransactionStore
	changes   *notify.Broadcaster
	publisher ChangePublisher
	report    ReportOptions
	now       func() time.Time
}

// NewTransactionService wires the store to the broadcaster its writes
// signal. publisher may be nil.
func NewTransactionService(store TransactionStore, changes *notify.Broadcaster, publisher ChangePublisher, report ReportOptions) *TransactionService {
	if report.WindowDays < 1 {
		report.WindowDays = 7
	}
	return &TransactionService{
		store:     store,
		changes:   changes,
		publisher: publisher,
		report:    report,
		now:       time.Now,
	}
}

// Insert writes t unless a transaction with the same title, amount and
// category already exists. The check and the write are atomic.
func (s *TransactionService) Insert(ctx context.Context, t core.Transaction) (InsertResult, error) {
	fields := log.NewFields().
		WithComponent(log.ComponentTransactions).
		WithOperation(log.OpCreate).
		WithTransaction(t)

	id, inserted, err := s.store.InsertIfAbsent(ctx, t)
	if err != nil {
		slog.ErrorContext(ctx, "Transaction insert failed", fields.WithError(err).ToSlice()...)
		return InsertError, storageError("insert transaction", err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Transaction already exists", fields.WithResult(InsertAlreadyExists.String()).ToSlice()...)
		return InsertAlreadyExists, nil
	}

	slog.InfoContext(ctx, "Transaction inserted", fields.WithResult(InsertSuccess.String()).ToSlice()...)
	s.publish(ctx, amqp.OpInserted, id)
	return InsertSuccess, nil
}

// Delete removes t by id. Deleting a transaction that is already gone
// succeeds without effect.
func (s *TransactionService) Delete(ctx context.Context, t core.Transaction) error {
	if err := s.store.DeleteTransaction(ctx, t.ID); err != nil {
		slog.ErrorContext(ctx, "Transaction delete failed", "id", t.ID, "error", err)
		return storageError("delete transaction", err)
	}
	s.publish(ctx, amqp.OpDeleted, t.ID)
	return nil
}

// ClearAll removes every transaction.
func (s *TransactionService) ClearAll(ctx context.Context) error {
	n, err := s.store.DeleteAllTransactions(ctx)
	if err != nil {
		return storageError("clear transactions", err)
	}
	slog.InfoContext(ctx, "Transactions cleared", log.FieldCount, n)
	s.publish(ctx, amqp.OpCleared, 0)
	return nil
}

// All returns the current transactions, newest first.
func (s *TransactionService) All(ctx context.Context) ([]core.Transaction, error) {
	list, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, storageError("list transactions", err)
	}
	return list, nil
}

// WatchAll emits the full list now and after every change, until ctx is
// done. A failed read arrives as a result carrying ErrStorage.
func (s *TransactionService) WatchAll(ctx context.Context) <-chan notify.Result[[]core.Transaction] {
	return notify.Watch(ctx, s.changes, "transactions", s.All)
}

// LastDaysSummary returns per (category, day) totals for the report window
// ending today, oldest day first.
func (s *TransactionService) LastDaysSummary(ctx context.Context) ([]core.Summary, error) {
	from, to := core.ReportWindow(s.now(), s.report.WindowDays)
	rows, err := s.store.SummaryByCategoryDate(ctx, from, to, s.report.IncludeIncome)
	if err != nil {
		return nil, storageError("summarize transactions", err)
	}
	return rows, nil
}

// WatchLastDaysSummary is the live form of LastDaysSummary.
func (s *TransactionService) WatchLastDaysSummary(ctx context.Context) <-chan notify.Result[[]core.Summary] {
	return notify.Watch(ctx, s.changes, "summary", s.LastDaysSummary)
}

// TopExpenses returns the n largest non-income transactions.
func (s *TransactionService) TopExpenses(ctx context.Context, n int) ([]core.Transaction, error) {
	list, err := s.store.TopExpenses(ctx, n)
	if err != nil {
		return nil, storageError("top expenses", err)
	}
	return list, nil
}

// WindowDays is the length of the report window.
func (s *TransactionService) WindowDays() int {
	return s.report.WindowDays
}

func (s *TransactionService) publish(ctx context.Context, op amqp.ChangeOp, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionChange(ctx, op, id); err != nil {
		// The write is committed; the feed is best effort.
		slog.WarnContext(ctx, "Failed to publish transaction change",
			"op", op, "id", id, "error", err)
	}
}
