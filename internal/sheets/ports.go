// Package sheets exports ledger rows to spreadsheet backends.
package sheets

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
)

// ExpenseRow is one exported expense with its category resolved to a name.
type ExpenseRow struct {
	Date        time.Time
	Category    string
	Description string
	Amount      core.Money
}

// Ports for outbound adapters.
type (
	ExpenseExporter interface {
		// AppendExpenses appends rows and returns how many were written.
		AppendExpenses(ctx context.Context, rows []ExpenseRow) (int, error)
	}

	// ExpenseSource is a user's ledger as seen by an export.
	ExpenseSource interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		CategoryNames(ctx context.Context) (map[int64]string, error)
	}
)

// Export copies every expense of src to dst.
func Export(ctx context.Context, src ExpenseSource, dst ExpenseExporter) (int, error) {
	expenses, err := src.ListExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("export expenses: %w", err)
	}
	if len(expenses) == 0 {
		return 0, nil
	}
	names, err := src.CategoryNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("export expenses: %w", err)
	}

	n, err := dst.AppendExpenses(ctx, Rows(expenses, names))
	if err != nil {
		return n, fmt.Errorf("export expenses: %w", err)
	}
	return n, nil
}

// Rows resolves category names. An id missing from names is exported as its
// number.
func Rows(expenses []core.Expense, names map[int64]string) []ExpenseRow {
	rows := make([]ExpenseRow, 0, len(expenses))
	for _, e := range expenses {
		name, ok := names[e.CategoryID]
		if !ok {
			name = fmt.Sprintf("#%d", e.CategoryID)
		}
		rows = append(rows, ExpenseRow{
			Date:        e.Date,
			Category:    name,
			Description: e.Description,
			Amount:      e.Amount,
		})
	}
	return rows
}
