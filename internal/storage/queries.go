package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Expense mirrors one row of the expenses table.
type Expense struct {
	ID          int64
	Title       string
	AmountCents int64
	Date        string
	Category    string
	Note        string
	ReceiptRef  string
	CreatedAt   int64
}

const expenseColumns = `id, title, amount_cents, date, category, note, receipt_ref, created_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (Expense, error) {
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.AmountCents,
		&i.Date,
		&i.Category,
		&i.Note,
		&i.ReceiptRef,
		&i.CreatedAt,
	)
	return i, err
}

func collectExpenses(rows *sql.Rows) ([]Expense, error) {
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpenses = `SELECT ` + expenseColumns + ` FROM expenses
ORDER BY date DESC, id DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const topExpenses = `SELECT ` + expenseColumns + ` FROM expenses
WHERE category <> ?
ORDER BY amount_cents DESC, id DESC
LIMIT ?`

// TopExpenses returns the largest non-income rows.
func (q *Queries) TopExpenses(ctx context.Context, incomeCategory string, limit int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, topExpenses, incomeCategory, limit)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

type SummarizeParams struct {
	From           string
	To             string
	IncludeIncome  bool
	IncomeCategory string
}

type SummaryRow struct {
	Category   string
	Date       string
	TotalCents int64
}

const summarize = `SELECT category, date, SUM(amount_cents) AS total_cents
FROM expenses
WHERE date BETWEEN ? AND ?
  AND (? OR category <> ?)
GROUP BY category, date
ORDER BY date ASC, category ASC`

func (q *Queries) Summarize(ctx context.Context, arg SummarizeParams) ([]SummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, summarize, arg.From, arg.To, arg.IncludeIncome, arg.IncomeCategory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SummaryRow
	for rows.Next() {
		var i SummaryRow
		if err := rows.Scan(&i.Category, &i.Date, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateExpenseParams struct {
	Title       string
	AmountCents int64
	Date        string
	Category    string
	Note        string
	ReceiptRef  string
	CreatedAt   int64
}

const createExpense = `INSERT INTO expenses (title, amount_cents, date, category, note, receipt_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense,
		arg.Title, arg.AmountCents, arg.Date, arg.Category, arg.Note, arg.ReceiptRef, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// The existence check and the write are one statement, so two identical
// inserts cannot both pass the check.
const createExpenseIfAbsent = `INSERT INTO expenses (title, amount_cents, date, category, note, receipt_ref, created_at)
SELECT ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (
    SELECT 1 FROM expenses WHERE title = ? AND amount_cents = ? AND category = ?
)`

// CreateExpenseIfAbsent returns the new id, or 0 when a row with the same
// title, amount and category already exists.
func (q *Queries) CreateExpenseIfAbsent(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpenseIfAbsent,
		arg.Title, arg.AmountCents, arg.Date, arg.Category, arg.Note, arg.ReceiptRef, arg.CreatedAt,
		arg.Title, arg.AmountCents, arg.Category)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return res.LastInsertId()
}

const expenseExists = `SELECT COUNT(*) FROM expenses WHERE title = ? AND amount_cents = ? AND category = ?`

func (q *Queries) ExpenseExists(ctx context.Context, title string, amountCents int64, category string) (bool, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, expenseExists, title, amountCents, category).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

type UpdateExpenseParams struct {
	ID          int64
	Title       string
	AmountCents int64
	Date        string
	Category    string
	Note        string
	ReceiptRef  string
}

const updateExpense = `UPDATE expenses
SET title = ?, amount_cents = ?, date = ?, category = ?, note = ?, receipt_ref = ?
WHERE id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense,
		arg.Title, arg.AmountCents, arg.Date, arg.Category, arg.Note, arg.ReceiptRef, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAllExpenses = `DELETE FROM expenses`

func (q *Queries) DeleteAllExpenses(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllExpenses)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPasswordHash = `SELECT password_hash FROM users WHERE username = ?`

func (q *Queries) GetPasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := q.db.QueryRowContext(ctx, getPasswordHash, username).Scan(&hash)
	return hash, err
}

const createUser = `INSERT INTO users (username, password_hash) VALUES (?, ?)
ON CONFLICT(username) DO NOTHING`

// CreateUser reports whether a row was written.
func (q *Queries) CreateUser(ctx context.Context, username, passwordHash string) (bool, error) {
	res, err := q.db.ExecContext(ctx, createUser, username, passwordHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const deleteAllUsers = `DELETE FROM users`

func (q *Queries) DeleteAllUsers(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllUsers)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
