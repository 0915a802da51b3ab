package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestRenderDashboard(t *testing.T) {
	now := time.Date(2024, 4, 28, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	d := core.Dashboard{
		TotalExpense: core.Money{Cents: 7000},
		CategorySummaries: []core.CategorySummary{
			{Category: core.Category{ID: 1, Name: "Food"}, TotalExpense: core.Money{Cents: 7000}, LastExpenseDate: &last},
			{Category: core.Category{ID: 2, Name: "Transport"}},
		},
		PendingBills: []core.Bill{
			{ID: 1, Name: "Rent", Amount: core.Money{Cents: 120000}, Deadline: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, d, now, 7*24*time.Hour))
	out := buf.String()

	assert.Contains(t, out, "70.00")
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "2024-03-05")
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "Rent")
	assert.Contains(t, out, "1200.00")
	assert.Contains(t, out, "due soon")
}

func TestRenderEmptyLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCategories(&buf, nil))
	require.NoError(t, RenderExpenses(&buf, nil, nil))
	require.NoError(t, RenderBills(&buf, nil, time.Now(), time.Hour))
	require.NoError(t, RenderBudgets(&buf, nil, nil))

	out := buf.String()
	assert.Contains(t, out, "No categories yet.")
	assert.Contains(t, out, "No expenses yet.")
	assert.Contains(t, out, "No pending bills.")
	assert.Contains(t, out, "No category budgets yet.")
}

func TestRenderExpensesTotal(t *testing.T) {
	var buf bytes.Buffer
	expenses := []core.Expense{
		{ID: 1, CategoryID: 1, Amount: core.Money{Cents: 10}, Date: time.Now()},
		{ID: 2, CategoryID: 1, Amount: core.Money{Cents: 20}, Date: time.Now(), Description: "coffee"},
	}
	require.NoError(t, RenderExpenses(&buf, expenses, map[int64]string{1: "Food"}))
	assert.Contains(t, buf.String(), "0.30")
	assert.Contains(t, buf.String(), "coffee")
}

func TestRenderBudgetsRemaining(t *testing.T) {
	var buf bytes.Buffer
	budgets := []core.Budget{{ID: 1, CategoryID: 1, Amount: core.Money{Cents: 5000}}}
	summaries := []core.CategorySummary{
		{Category: core.Category{ID: 1, Name: "Food"}, TotalExpense: core.Money{Cents: 7000}},
	}
	require.NoError(t, RenderBudgets(&buf, budgets, summaries))
	assert.Contains(t, buf.String(), "-20.00")
}

func TestShare(t *testing.T) {
	assert.Equal(t, "-", share(core.Money{Cents: 1}, core.Money{}))
	assert.Contains(t, share(core.Money{Cents: 50}, core.Money{Cents: 100}), "50.0%")
}

func TestFailureUsesUserMessage(t *testing.T) {
	var buf bytes.Buffer
	Failure(&buf, core.ErrDuplicateName)
	assert.Contains(t, buf.String(), "Category name already exists")

	buf.Reset()
	Failure(&buf, errors.Join(core.ErrUnauthenticated))
	assert.Contains(t, buf.String(), "Please sign in first")
}
