package services

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
)

// AggregateStore computes the derived values of a user's ledger.
type AggregateStore interface {
	TotalExpense(ctx context.Context, userID string) (core.Money, error)
	CategorySummaries(ctx context.Context, userID string) ([]core.CategorySummary, error)
	PendingBillCount(ctx context.Context, userID string) (int, error)
	ListBills(ctx context.Context, userID string) ([]core.Bill, error)
	BillsDueBefore(ctx context.Context, userID string, t time.Time) ([]core.Bill, error)
}

// AggregationService answers summary questions. Nothing is cached; every call
// reads the current rows.
type AggregationService struct {
	store AggregateStore
}

func NewAggregationService(store AggregateStore) *AggregationService {
	return &AggregationService{store: store}
}

func (a *AggregationService) TotalExpense(ctx context.Context, userID string) (core.Money, error) {
	total, err := a.store.TotalExpense(ctx, userID)
	if err != nil {
		return core.Money{}, fmt.Errorf("total expense: %w", err)
	}
	return total, nil
}

func (a *AggregationService) CategorySummaries(ctx context.Context, userID string) ([]core.CategorySummary, error) {
	summaries, err := a.store.CategorySummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("category summaries: %w", err)
	}
	return summaries, nil
}

func (a *AggregationService) PendingBillCount(ctx context.Context, userID string) (int, error) {
	n, err := a.store.PendingBillCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("pending bill count: %w", err)
	}
	return n, nil
}

// PendingBills returns every stored bill of the user.
func (a *AggregationService) PendingBills(ctx context.Context, userID string) ([]core.Bill, error) {
	bills, err := a.store.ListBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pending bills: %w", err)
	}
	return bills, nil
}

// BillsDueWithin returns the pending bills whose deadline falls before
// now+window, overdue ones included.
func (a *AggregationService) BillsDueWithin(ctx context.Context, userID string, now time.Time, window time.Duration) ([]core.Bill, error) {
	if window < 0 {
		return nil, fmt.Errorf("bills due within %s: %w", window, core.ErrInvalidInput)
	}
	bills, err := a.store.BillsDueBefore(ctx, userID, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("bills due within %s: %w", window, err)
	}
	return bills, nil
}
