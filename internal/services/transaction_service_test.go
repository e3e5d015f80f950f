package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"daybook/internal/amqp"
	"daybook/internal/core"
	"daybook/internal/notify"
	"daybook/internal/storage"

	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ChangeOp
	err    error
}

func (p *recordingPublisher) PublishTransactionChange(_ context.Context, op amqp.ChangeOp, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, op)
	return p.err
}

func (p *recordingPublisher) ops() []amqp.ChangeOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]amqp.ChangeOp(nil), p.events...)
}

func newRepo(t *testing.T, changes *notify.Broadcaster) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "svc.db"), changes)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newService(t *testing.T, pub ChangePublisher) *TransactionService {
	t.Helper()
	changes := notify.NewBroadcaster()
	return NewTransactionService(newRepo(t, changes), changes, pub, ReportOptions{WindowDays: 7})
}

func mk(title, amount, category string, date core.Date) core.Transaction {
	return core.NewTransaction(title, decimal.RequireFromString(amount), date, category)
}

func next[T any](t *testing.T, ch <-chan notify.Result[T]) T {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		if r.Err != nil {
			t.Fatalf("stream error: %v", r.Err)
		}
		return r.Value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func TestInsertResults(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub)
	ctx := context.Background()
	coffee := mk("Coffee", "4.50", "Groceries", core.NewDate(2025, 6, 1))

	res, err := svc.Insert(ctx, coffee)
	if err != nil || res != InsertSuccess {
		t.Fatalf("first insert = %v, %v", res, err)
	}
	res, err = svc.Insert(ctx, coffee)
	if err != nil || res != InsertAlreadyExists {
		t.Fatalf("second insert = %v, %v", res, err)
	}

	list, err := svc.All(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("All = %d rows, %v", len(list), err)
	}
	if ops := pub.ops(); len(ops) != 1 || ops[0] != amqp.OpInserted {
		t.Fatalf("published %v, want one insert", ops)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newService(t, pub)
	res, err := svc.Insert(context.Background(), mk("Tea", "1", "Food", core.NewDate(2025, 6, 1)))
	if err != nil || res != InsertSuccess {
		t.Fatalf("insert = %v, %v", res, err)
	}
}

func TestWatchAllFollowsWrites(t *testing.T) {
	svc := newService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := svc.WatchAll(ctx)
	if got := next(t, stream); len(got) != 0 {
		t.Fatalf("initial snapshot has %d rows", len(got))
	}

	coffee := mk("Coffee", "4.50", "Groceries", core.NewDate(2025, 6, 1))
	if _, err := svc.Insert(ctx, coffee); err != nil {
		t.Fatal(err)
	}
	got := next(t, stream)
	if len(got) != 1 || got[0].Title != "Coffee" {
		t.Fatalf("after insert: %+v", got)
	}

	f := core.DefaultFormatter()
	if s := f.Format(core.TotalExpense(got)); s != "₹4.50" {
		t.Errorf("total expense = %q", s)
	}
	if s := f.Format(core.Balance(got)); s != "-₹4.50" {
		t.Errorf("balance = %q", s)
	}

	if err := svc.Delete(ctx, got[0]); err != nil {
		t.Fatal(err)
	}
	if got := next(t, stream); len(got) != 0 {
		t.Fatalf("after delete: %d rows", len(got))
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	svc := newService(t, nil)
	if err := svc.Delete(context.Background(), core.Transaction{ID: 999}); err != nil {
		t.Fatalf("Delete of missing row: %v", err)
	}
}

func TestLastDaysSummaryWindow(t *testing.T) {
	svc := newService(t, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 7, 20, 0, 0, 0, time.Local) }
	ctx := context.Background()

	for _, tx := range []core.Transaction{
		mk("first day", "10", "Food", core.NewDate(2025, 6, 1)),
		mk("today", "20", "Food", core.NewDate(2025, 6, 7)),
		mk("too old", "30", "Food", core.NewDate(2025, 5, 31)),
		mk("tomorrow", "40", "Food", core.NewDate(2025, 6, 8)),
		mk("pay", "5000", core.IncomeCategory, core.NewDate(2025, 6, 3)),
	} {
		if _, err := svc.Insert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := svc.LastDaysSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if !rows[0].Date.SameDay(core.NewDate(2025, 6, 1)) || !rows[1].Date.SameDay(core.NewDate(2025, 6, 7)) {
		t.Fatalf("rows not ascending by date: %+v", rows)
	}
	for _, r := range rows {
		if r.IsIncome() {
			t.Fatalf("income leaked into expense summary: %+v", r)
		}
	}
}

func TestWatchSummaryIncludesIncomeWhenConfigured(t *testing.T) {
	changes := notify.NewBroadcaster()
	svc := NewTransactionService(newRepo(t, changes), changes, nil, ReportOptions{WindowDays: 7, IncludeIncome: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := svc.WatchLastDaysSummary(ctx)
	if rows := next(t, stream); len(rows) != 0 {
		t.Fatalf("initial summary = %+v", rows)
	}
	if _, err := svc.Insert(ctx, mk("pay", "5000", core.IncomeCategory, core.Today())); err != nil {
		t.Fatal(err)
	}
	rows := next(t, stream)
	if len(rows) != 1 || !rows[0].IsIncome() {
		t.Fatalf("summary = %+v", rows)
	}
}

func TestClearAllAndTop(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub)
	ctx := context.Background()
	day := core.NewDate(2025, 6, 1)
	for _, tx := range []core.Transaction{
		mk("a", "5", "Food", day),
		mk("b", "500", "Rent", day),
		mk("c", "50", "Food", day),
	} {
		if _, err := svc.Insert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	top, err := svc.TopExpenses(ctx, 1)
	if err != nil || len(top) != 1 || top[0].Title != "b" {
		t.Fatalf("TopExpenses = %+v, %v", top, err)
	}

	if err := svc.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	if list, _ := svc.All(ctx); len(list) != 0 {
		t.Fatalf("%d rows after ClearAll", len(list))
	}
	ops := pub.ops()
	if ops[len(ops)-1] != amqp.OpCleared {
		t.Fatalf("last event = %v, want cleared", ops[len(ops)-1])
	}
}

type brokenStore struct{ TransactionStore }

var errDisk = errors.New("disk I/O error")

func (brokenStore) InsertIfAbsent(context.Context, core.Transaction) (int64, bool, error) {
	return 0, false, errDisk
}

func (brokenStore) DeleteTransaction(context.Context, int64) error { return errDisk }

func (brokenStore) ListTransactions(context.Context) ([]core.Transaction, error) {
	return nil, errDisk
}

func TestStorageFailuresAreMapped(t *testing.T) {
	svc := NewTransactionService(brokenStore{}, notify.NewBroadcaster(), nil, ReportOptions{})
	ctx := context.Background()

	res, err := svc.Insert(ctx, mk("x", "1", "Food", core.NewDate(2025, 6, 1)))
	if res != InsertError || !errors.Is(err, ErrStorage) || !errors.Is(err, errDisk) {
		t.Fatalf("Insert = %v, %v", res, err)
	}
	if err := svc.Delete(ctx, core.Transaction{ID: 1}); !errors.Is(err, ErrStorage) {
		t.Fatalf("Delete err = %v", err)
	}
	if _, err := svc.All(ctx); !errors.Is(err, ErrStorage) {
		t.Fatalf("All err = %v", err)
	}
	if svc.WindowDays() != 7 {
		t.Fatalf("default window = %d", svc.WindowDays())
	}
}

func TestWatchAllReportsStorageFailure(t *testing.T) {
	svc := NewTransactionService(brokenStore{}, notify.NewBroadcaster(), nil, ReportOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case r := <-svc.WatchAll(ctx):
		if !errors.Is(r.Err, ErrStorage) || !errors.Is(r.Err, errDisk) {
			t.Fatalf("result = %+v, want a storage error", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failed read never reached the stream")
	}
}
