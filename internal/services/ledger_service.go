// Package services scopes ledger operations to a user and orchestrates the
// store, the aggregation queries and the optional event publisher.
package services

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

// LedgerStore is the persistence the ledger needs.
type LedgerStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpensesByCategory(ctx context.Context, userID string, categoryID int64) ([]core.Expense, error)
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error)
	CreateBill(ctx context.Context, b core.Bill) (core.Bill, error)
	ListBills(ctx context.Context, userID string) ([]core.Bill, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
}

// EventPublisher receives an event after every successful write.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	Close() error
}

// LedgerService saves ledger rows locally and announces them on the event bus.
// The publisher is optional.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher
}

func NewLedgerService(store LedgerStore, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// For returns the ledger of one user.
func (s *LedgerService) For(userID string) *Ledger {
	return &Ledger{service: s, userID: userID}
}

func (s *LedgerService) publish(ctx context.Context, eventType, userID string, entityID int64) {
	if s.publisher == nil {
		ledgerLog(ctx).DebugContext(ctx, "Event publisher not configured, skipping event", log.FieldOperation, log.OpPublish, "type", eventType)
		return
	}
	if err := s.publisher.PublishEvent(ctx, amqp.NewLedgerEvent(eventType, userID, entityID)); err != nil {
		// The row is already stored.
		fields := log.NewFields().
			WithOperation(log.OpPublish).
			WithUser(userID).
			WithError(err)
		fields["type"] = eventType
		fields[log.FieldEntityID] = entityID
		ledgerLog(ctx).ErrorContext(ctx, "Failed to publish ledger event", fields.ToSlice()...)
	}
}

// Close releases the publisher. The store is owned by the caller.
func (s *LedgerService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}

// Ledger is a LedgerService bound to one user. Every read is a fresh query.
type Ledger struct {
	service *LedgerService
	userID  string
}

func (l *Ledger) UserID() string { return l.userID }

func (l *Ledger) AddCategory(ctx context.Context, name string) (core.Category, error) {
	c, err := l.service.store.CreateCategory(ctx, core.Category{UserID: l.userID, Name: name})
	if err != nil {
		return core.Category{}, fmt.Errorf("add category: %w", err)
	}
	l.service.publish(ctx, amqp.EventCategoryCreated, l.userID, c.ID)
	return c, nil
}

func (l *Ledger) ListCategories(ctx context.Context) ([]core.Category, error) {
	categories, err := l.service.store.ListCategories(ctx, l.userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// AddExpense parses amount as a decimal and stores the expense under one of
// the user's categories.
func (l *Ledger) AddExpense(ctx context.Context, categoryID int64, amount string, date time.Time, description string) (core.Expense, error) {
	money, err := core.ParseMoney(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e, err := l.service.store.CreateExpense(ctx, core.Expense{
		CategoryID:  categoryID,
		UserID:      l.userID,
		Amount:      money,
		Date:        date,
		Description: description,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	l.service.publish(ctx, amqp.EventExpenseCreated, l.userID, e.ID)
	return e, nil
}

func (l *Ledger) ListExpensesByCategory(ctx context.Context, categoryID int64) ([]core.Expense, error) {
	expenses, err := l.service.store.ListExpensesByCategory(ctx, l.userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list expenses of category %d: %w", categoryID, err)
	}
	return expenses, nil
}

func (l *Ledger) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	expenses, err := l.service.store.ListExpenses(ctx, l.userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (l *Ledger) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := l.service.store.GetExpense(ctx, l.userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (l *Ledger) AddBill(ctx context.Context, name, amount string, deadline time.Time) (core.Bill, error) {
	money, err := core.ParseMoney(amount)
	if err != nil {
		return core.Bill{}, fmt.Errorf("add bill: %w", err)
	}
	b, err := l.service.store.CreateBill(ctx, core.Bill{
		UserID:   l.userID,
		Name:     name,
		Amount:   money,
		Deadline: deadline,
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("add bill: %w", err)
	}
	l.service.publish(ctx, amqp.EventBillCreated, l.userID, b.ID)
	return b, nil
}

func (l *Ledger) ListBills(ctx context.Context) ([]core.Bill, error) {
	bills, err := l.service.store.ListBills(ctx, l.userID)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

func (l *Ledger) AddBudget(ctx context.Context, categoryID int64, amount string) (core.Budget, error) {
	money, err := core.ParseMoney(amount)
	if err != nil {
		return core.Budget{}, fmt.Errorf("add budget: %w", err)
	}
	b, err := l.service.store.CreateBudget(ctx, core.Budget{
		CategoryID: categoryID,
		UserID:     l.userID,
		Amount:     money,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("add budget: %w", err)
	}
	l.service.publish(ctx, amqp.EventBudgetCreated, l.userID, b.ID)
	return b, nil
}

func (l *Ledger) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := l.service.store.ListBudgets(ctx, l.userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// CategoryNames maps category ids of the user to their names.
func (l *Ledger) CategoryNames(ctx context.Context) (map[int64]string, error) {
	categories, err := l.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

func ledgerLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentLedger)
}
