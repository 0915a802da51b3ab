package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the ledger of every user of this install in one
// SQLite file. Each write is a single-row statement.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStorageUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorageUnavailable, err)
	}

	repo := &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := repo.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// EnsureSchema applies pending migrations. It is idempotent.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if err := RunMigrations(r.dbPath); err != nil {
		return err
	}
	storageLog(ctx).DebugContext(ctx, "Schema is up to date", log.FieldOperation, log.OpMigrate, "db_path", r.dbPath, "version", SchemaVersion)
	return nil
}

// SchemaVersion returns the applied migration version of the open store.
func (r *SQLiteRepository) SchemaVersion(ctx context.Context) (uint, bool, error) {
	return ReadSchemaVersion(r.dbPath)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateCategory stores a category. A name already used by the same user
// yields core.ErrDuplicateName.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	name, err := core.NormalizeName(c.Name)
	if err != nil {
		return core.Category{}, err
	}
	c.Name = name
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, created_at) VALUES (?, ?, ?)`,
		c.UserID, c.Name, core.FormatTimestamp(c.CreatedAt))
	if err != nil {
		err = classify("create category", err)
		if errors.Is(err, core.ErrConstraintViolation) {
			return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, core.ErrDuplicateName)
		}
		return core.Category{}, err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, classify("create category", err)
	}

	storageLog(ctx).InfoContext(ctx, "Category saved to SQLite",
		log.FieldOperation, log.OpCreate,
		"id", c.ID,
		log.FieldUserID, c.UserID,
		"name", c.Name)
	return c, nil
}

// ListCategories returns the user's categories in creation order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classify("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list categories", err)
	}
	return categories, nil
}

// GetCategory returns a category of the user or core.ErrNotFound.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID string, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE id = ? AND user_id = ?`,
		id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, classify("get category", err)
	}
	return c, nil
}

// CreateExpense stores an expense. The insert only happens when the category
// belongs to the same user; otherwise core.ErrUnknownCategory is returned.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.Date = e.Date.UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (category_id, user_id, amount_cents, date, description)
		 SELECT ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`,
		e.CategoryID, e.UserID, e.Amount.Cents, core.FormatTimestamp(e.Date), e.Description,
		e.CategoryID, e.UserID)
	if err != nil {
		return core.Expense{}, classify("create expense", err)
	}
	if e.ID, err = insertedID(res); err != nil {
		return core.Expense{}, fmt.Errorf("create expense for category %d: %w", e.CategoryID, err)
	}

	storageLog(ctx).InfoContext(ctx, "Expense saved to SQLite",
		log.FieldOperation, log.OpCreate,
		"id", e.ID,
		log.FieldUserID, e.UserID,
		log.FieldCategoryID, e.CategoryID,
		log.FieldAmount, e.Amount.Cents,
		"date", core.FormatTimestamp(e.Date))
	return e, nil
}

// ListExpensesByCategory returns the user's expenses of one category ordered by
// date. An unknown category yields core.ErrNotFound.
func (r *SQLiteRepository) ListExpensesByCategory(ctx context.Context, userID string, categoryID int64) ([]core.Expense, error) {
	if _, err := r.GetCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}
	return r.queryExpenses(ctx,
		`SELECT id, category_id, user_id, amount_cents, date, description
		 FROM expenses WHERE user_id = ? AND category_id = ? ORDER BY date, id`,
		userID, categoryID)
}

// GetExpense returns one of the user's expenses.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error) {
	expenses, err := r.queryExpenses(ctx,
		`SELECT id, category_id, user_id, amount_cents, date, description
		 FROM expenses WHERE user_id = ? AND id = ?`,
		userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	if len(expenses) == 0 {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, core.ErrNotFound)
	}
	return expenses[0], nil
}

// ListExpenses returns every expense of the user ordered by date.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT id, category_id, user_id, amount_cents, date, description
		 FROM expenses WHERE user_id = ? ORDER BY date, id`,
		userID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list expenses", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.CategoryID, &e.UserID, &e.Amount.Cents, &date, &e.Description); err != nil {
			return nil, classify("scan expense", err)
		}
		if e.Date, err = core.ParseTimestamp(date); err != nil {
			return nil, fmt.Errorf("parse expense %d date: %w", e.ID, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list expenses", err)
	}
	return expenses, nil
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	name, err := core.NormalizeName(b.Name)
	if err != nil {
		return core.Bill{}, err
	}
	b.Name = name
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	b.Deadline = b.Deadline.UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bills (user_id, name, amount_cents, deadline) VALUES (?, ?, ?, ?)`,
		b.UserID, b.Name, b.Amount.Cents, core.FormatTimestamp(b.Deadline))
	if err != nil {
		return core.Bill{}, classify("create bill", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return core.Bill{}, classify("create bill", err)
	}

	storageLog(ctx).InfoContext(ctx, "Bill saved to SQLite",
		log.FieldOperation, log.OpCreate,
		"id", b.ID,
		log.FieldUserID, b.UserID,
		"name", b.Name,
		log.FieldAmount, b.Amount.Cents)
	return b, nil
}

// ListBills returns the user's bills ordered by deadline.
func (r *SQLiteRepository) ListBills(ctx context.Context, userID string) ([]core.Bill, error) {
	return r.queryBills(ctx,
		`SELECT id, user_id, name, amount_cents, deadline
		 FROM bills WHERE user_id = ? ORDER BY deadline, id`,
		userID)
}

func (r *SQLiteRepository) queryBills(ctx context.Context, query string, args ...any) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list bills", err)
	}
	defer rows.Close()

	bills := []core.Bill{}
	for rows.Next() {
		var (
			b        core.Bill
			deadline string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount.Cents, &deadline); err != nil {
			return nil, classify("scan bill", err)
		}
		if b.Deadline, err = core.ParseTimestamp(deadline); err != nil {
			return nil, fmt.Errorf("parse bill %d deadline: %w", b.ID, err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list bills", err)
	}
	return bills, nil
}

// CreateBudget stores a budget for one of the user's categories.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (category_id, user_id, amount_cents)
		 SELECT ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`,
		b.CategoryID, b.UserID, b.Amount.Cents,
		b.CategoryID, b.UserID)
	if err != nil {
		return core.Budget{}, classify("create budget", err)
	}
	if b.ID, err = insertedID(res); err != nil {
		return core.Budget{}, fmt.Errorf("create budget for category %d: %w", b.CategoryID, err)
	}

	storageLog(ctx).InfoContext(ctx, "Budget saved to SQLite",
		log.FieldOperation, log.OpCreate,
		"id", b.ID,
		log.FieldUserID, b.UserID,
		log.FieldCategoryID, b.CategoryID,
		log.FieldAmount, b.Amount.Cents)
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, user_id, amount_cents FROM budgets WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, classify("list budgets", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.UserID, &b.Amount.Cents); err != nil {
			return nil, classify("scan budget", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list budgets", err)
	}
	return budgets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &createdAt); err != nil {
		return core.Category{}, err
	}
	t, err := core.ParseTimestamp(createdAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category %d created_at: %w", c.ID, err)
	}
	c.CreatedAt = t
	return c, nil
}

// insertedID returns the new row id of a conditional insert, or
// core.ErrUnknownCategory when the guarding category lookup matched nothing.
func insertedID(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("rows affected", err)
	}
	if n == 0 {
		return 0, core.ErrUnknownCategory
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("last insert id", err)
	}
	return id, nil
}

func storageLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentStorage)
}
