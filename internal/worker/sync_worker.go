// Package worker reacts to ledger events delivered by the event bus.
package worker

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// ExpenseLookup reads expenses of a single user.
type ExpenseLookup interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CategoryNames(ctx context.Context) (map[int64]string, error)
}

// SyncWorker appends newly created expenses of one user to a spreadsheet.
type SyncWorker struct {
	userID  string
	ledger  ExpenseLookup
	sheets  sheets.ExpenseExporter
	handled int
}

func NewSyncWorker(userID string, ledger ExpenseLookup, exporter sheets.ExpenseExporter) *SyncWorker {
	return &SyncWorker{
		userID: userID,
		ledger: ledger,
		sheets: exporter,
	}
}

// HandleEvent syncs an expense.created event. Other event types and events
// of other users are skipped. A returned error means the event should be
// redelivered.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.UserID != w.userID || ev.Type != amqp.EventExpenseCreated {
		workerLog(ctx).DebugContext(ctx, "Skipping ledger event", "id", ev.ID, "type", ev.Type)
		return nil
	}

	workerLog(ctx).InfoContext(ctx, "Processing sync message",
		log.FieldOperation, log.OpSync,
		"id", ev.ID,
		"expense_id", ev.EntityID)

	expense, err := w.ledger.GetExpense(ctx, ev.EntityID)
	if errors.Is(err, core.ErrNotFound) {
		// Redelivery cannot make it appear.
		workerLog(ctx).WarnContext(ctx, "Expense of event not found, dropping", "id", ev.ID, "expense_id", ev.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	names, err := w.ledger.CategoryNames(ctx)
	if err != nil {
		return fmt.Errorf("resolve category names: %w", err)
	}

	if _, err := w.sheets.AppendExpenses(ctx, sheets.Rows([]core.Expense{expense}, names)); err != nil {
		return fmt.Errorf("sync expense to sheets: %w", err)
	}
	w.handled++

	workerLog(ctx).InfoContext(ctx, "Successfully synced expense",
		log.FieldOperation, log.OpSync,
		"expense_id", expense.ID,
		log.FieldAmount, expense.Amount.Cents)
	return nil
}

// Synced reports how many expenses were appended.
func (w *SyncWorker) Synced() int { return w.handled }

func workerLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker)
}
