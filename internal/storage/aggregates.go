package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/core"
)

// TotalExpense sums every expense of the user. No expenses sum to zero.
func (r *SQLiteRepository) TotalExpense(ctx context.Context, userID string) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?`,
		userID).Scan(&total)
	if err != nil {
		return core.Money{}, classify("total expense", err)
	}
	return core.Money{Cents: total}, nil
}

// CategorySummaries returns one row per category of the user in creation
// order, with the sum and latest date of the user's expenses in it.
func (r *SQLiteRepository) CategorySummaries(ctx context.Context, userID string) ([]core.CategorySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.name, c.created_at,
		       COALESCE(SUM(e.amount_cents), 0) AS total_cents,
		       MAX(e.date) AS last_date
		FROM categories c
		LEFT JOIN expenses e ON e.category_id = c.id AND e.user_id = c.user_id
		WHERE c.user_id = ?
		GROUP BY c.id, c.user_id, c.name, c.created_at
		ORDER BY c.id`,
		userID)
	if err != nil {
		return nil, classify("category summaries", err)
	}
	defer rows.Close()

	summaries := []core.CategorySummary{}
	for rows.Next() {
		var (
			s         core.CategorySummary
			createdAt string
			lastDate  sql.NullString
		)
		if err := rows.Scan(&s.Category.ID, &s.Category.UserID, &s.Category.Name, &createdAt,
			&s.TotalExpense.Cents, &lastDate); err != nil {
			return nil, classify("scan category summary", err)
		}
		if s.Category.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("parse category %d created_at: %w", s.Category.ID, err)
		}
		if lastDate.Valid {
			t, err := core.ParseTimestamp(lastDate.String)
			if err != nil {
				return nil, fmt.Errorf("parse category %d last expense date: %w", s.Category.ID, err)
			}
			s.LastExpenseDate = &t
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("category summaries", err)
	}
	return summaries, nil
}

func (r *SQLiteRepository) PendingBillCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, classify("pending bill count", err)
	}
	return n, nil
}

// BillsDueBefore returns the user's bills with a deadline before t.
func (r *SQLiteRepository) BillsDueBefore(ctx context.Context, userID string, t time.Time) ([]core.Bill, error) {
	return r.queryBills(ctx,
		`SELECT id, user_id, name, amount_cents, deadline
		 FROM bills WHERE user_id = ? AND deadline < ? ORDER BY deadline, id`,
		userID, core.FormatTimestamp(t))
}
