package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"daybook/internal/core"
	"daybook/internal/notify"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists transactions and user credentials. Every
// committed write is announced on the change broadcaster so live queries
// can re-run.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	changes *notify.Broadcaster
}

func NewSQLiteRepository(dbPath string, changes *notify.Broadcaster) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Migrate before the pool opens so it never sees a half-built schema.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes statements
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if changes == nil {
		changes = notify.NewBroadcaster()
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		changes: changes,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Changes is the broadcaster signalled after every committed write.
func (r *SQLiteRepository) Changes() *notify.Broadcaster {
	return r.changes
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, bool, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("get expense %d: %w", id, err)
	}
	t, err := toTransaction(row)
	return t, err == nil, err
}

func (r *SQLiteRepository) TopExpenses(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.TopExpenses(ctx, core.IncomeCategory, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("top expenses: %w", err)
	}
	return toTransactions(rows)
}

// SummaryByCategoryDate sums amounts per (category, day) within the
// inclusive window, oldest day first.
func (r *SQLiteRepository) SummaryByCategoryDate(ctx context.Context, from, to core.Date, includeIncome bool) ([]core.Summary, error) {
	rows, err := r.queries.Summarize(ctx, SummarizeParams{
		From:           from.String(),
		To:             to.String(),
		IncludeIncome:  includeIncome,
		IncomeCategory: core.IncomeCategory,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}

	out := make([]core.Summary, 0, len(rows))
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", row.Date, err)
		}
		out = append(out, core.Summary{
			Category: row.Category,
			Date:     d,
			Total:    core.FromCents(row.TotalCents),
		})
	}
	return out, nil
}

// InsertTransaction writes t unconditionally and returns its new id.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := r.queries.CreateExpense(ctx, createParams(t))
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	r.changes.Notify()

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", t.Title,
		"amount_cents", core.ToCents(t.Amount),
		"category", t.Category)
	return id, nil
}

// InsertIfAbsent writes t unless a row with the same title, amount and
// category exists. inserted is false in that case and nothing changes.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, t core.Transaction) (id int64, inserted bool, err error) {
	id, err = r.queries.CreateExpenseIfAbsent(ctx, createParams(t))
	if err != nil {
		return 0, false, fmt.Errorf("create expense if absent: %w", err)
	}
	if id == 0 {
		slog.DebugContext(ctx, "Duplicate expense skipped",
			"title", t.Title,
			"amount_cents", core.ToCents(t.Amount),
			"category", t.Category)
		return 0, false, nil
	}
	r.changes.Notify()

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", t.Title,
		"amount_cents", core.ToCents(t.Amount),
		"category", t.Category)
	return id, true, nil
}

func (r *SQLiteRepository) TransactionExists(ctx context.Context, t core.Transaction) (bool, error) {
	ok, err := r.queries.ExpenseExists(ctx, t.Title, core.ToCents(t.Amount), t.Category)
	if err != nil {
		return false, fmt.Errorf("check expense exists: %w", err)
	}
	return ok, nil
}

// UpdateTransaction rewrites the row with t.ID. Returns false if no such row.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (bool, error) {
	n, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		ID:          t.ID,
		Title:       t.Title,
		AmountCents: core.ToCents(t.Amount),
		Date:        t.Date.String(),
		Category:    t.Category,
		Note:        t.Note,
		ReceiptRef:  t.ReceiptRef,
	})
	if err != nil {
		return false, fmt.Errorf("update expense %d: %w", t.ID, err)
	}
	if n > 0 {
		r.changes.Notify()
		slog.InfoContext(ctx, "Expense updated", "id", t.ID)
	}
	return n > 0, nil
}

// DeleteTransaction removes the row with id; a missing row is not an error.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n > 0 {
		r.changes.Notify()
		slog.InfoContext(ctx, "Expense deleted", "id", id)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAllTransactions(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteAllExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all expenses: %w", err)
	}
	r.changes.Notify()
	slog.InfoContext(ctx, "All expenses deleted", "count", n)
	return n, nil
}

// PasswordHash returns the stored hash for username; found is false if the
// user does not exist.
func (r *SQLiteRepository) PasswordHash(ctx context.Context, username string) (hash string, found bool, err error) {
	hash, err = r.queries.GetPasswordHash(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get user: %w", err)
	}
	return hash, true, nil
}

// CreateUser inserts a user atomically; created is false if the username is
// taken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (created bool, err error) {
	created, err = r.queries.CreateUser(ctx, username, passwordHash)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	if created {
		slog.InfoContext(ctx, "User created", "username", username)
	}
	return created, nil
}

func (r *SQLiteRepository) DeleteAllUsers(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteAllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all users: %w", err)
	}
	slog.InfoContext(ctx, "All users deleted", "count", n)
	return n, nil
}

// ClearAll wipes transactions and users in one transaction.
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if _, err := q.DeleteAllExpenses(ctx); err != nil {
		return fmt.Errorf("delete all expenses: %w", err)
	}
	if _, err := q.DeleteAllUsers(ctx); err != nil {
		return fmt.Errorf("delete all users: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.changes.Notify()
	slog.InfoContext(ctx, "Database cleared")
	return nil
}

func createParams(t core.Transaction) CreateExpenseParams {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return CreateExpenseParams{
		Title:       t.Title,
		AmountCents: core.ToCents(t.Amount),
		Date:        t.Date.String(),
		Category:    t.Category,
		Note:        t.Note,
		ReceiptRef:  t.ReceiptRef,
		CreatedAt:   created.UnixMilli(),
	}
}

func toTransaction(row Expense) (core.Transaction, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q for expense %d: %w", row.Date, row.ID, err)
	}
	return core.Transaction{
		ID:         row.ID,
		Title:      row.Title,
		Amount:     core.FromCents(row.AmountCents),
		Date:       d,
		Category:   row.Category,
		Note:       row.Note,
		ReceiptRef: row.ReceiptRef,
		CreatedAt:  time.UnixMilli(row.CreatedAt),
	}, nil
}

func toTransactions(rows []Expense) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
