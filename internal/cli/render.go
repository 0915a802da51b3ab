package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ledger/internal/core"
	"ledger/internal/services"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7f849c"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f38ba8"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

const dateLayout = "2006-01-02"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func writeBlock(w io.Writer, title string, body string) error {
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
	return err
}

func empty(msg string) string {
	return mutedStyle.Render(msg)
}

// Success prints a confirmation line.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Failure prints err as a user-facing line.
func Failure(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render(core.UserMessage(err)))
}

func RenderCategories(w io.Writer, categories []core.Category) error {
	if len(categories) == 0 {
		return writeBlock(w, "Categories", empty("No categories yet."))
	}
	t := newTable("ID", "Name", "Created")
	for _, c := range categories {
		t.Row(fmt.Sprint(c.ID), c.Name, c.CreatedAt.Format(dateLayout))
	}
	return writeBlock(w, "Categories", t.String())
}

// RenderExpenses lists expenses with their category names.
func RenderExpenses(w io.Writer, expenses []core.Expense, names map[int64]string) error {
	if len(expenses) == 0 {
		return writeBlock(w, "Expenses", empty("No expenses yet."))
	}
	t := newTable("ID", "Date", "Category", "Description", "Amount")
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
		t.Row(fmt.Sprint(e.ID), e.Date.Format(dateLayout), names[e.CategoryID], e.Description, e.Amount.String())
	}
	t.Row("", "", "", "Total", total.String())
	return writeBlock(w, "Expenses", t.String())
}

// RenderBills lists bills with how close each is to its deadline.
func RenderBills(w io.Writer, bills []core.Bill, now time.Time, window time.Duration) error {
	if len(bills) == 0 {
		return writeBlock(w, "Pending bills", empty("No pending bills."))
	}
	t := newTable("ID", "Name", "Deadline", "Amount", "Status")
	for _, b := range bills {
		t.Row(fmt.Sprint(b.ID), b.Name, b.Deadline.Format(dateLayout), b.Amount.String(),
			billStatus(services.ClassifyBill(b.Deadline, now, window)))
	}
	return writeBlock(w, "Pending bills", t.String())
}

func billStatus(s services.BillStatus) string {
	switch s {
	case services.BillOverdue:
		return errorStyle.Render(s.String())
	case services.BillDueSoon:
		return warnStyle.Render(s.String())
	default:
		return s.String()
	}
}

// RenderBudgets compares each budget with what was spent in its category.
func RenderBudgets(w io.Writer, budgets []core.Budget, summaries []core.CategorySummary) error {
	if len(budgets) == 0 {
		return writeBlock(w, "Budgets", empty("No category budgets yet."))
	}
	byCategory := make(map[int64]core.CategorySummary, len(summaries))
	for _, s := range summaries {
		byCategory[s.Category.ID] = s
	}

	t := newTable("ID", "Category", "Budget", "Spent", "Remaining")
	for _, b := range budgets {
		s := byCategory[b.CategoryID]
		remaining := core.Money{Cents: b.Amount.Cents - s.TotalExpense.Cents}
		remain := remaining.String()
		if remaining.Cents < 0 {
			remain = errorStyle.Render(remain)
		}
		t.Row(fmt.Sprint(b.ID), s.Category.Name, b.Amount.String(), s.TotalExpense.String(), remain)
	}
	return writeBlock(w, "Budgets", t.String())
}

// RenderDashboard prints the total, the per-category summary and the bills.
func RenderDashboard(w io.Writer, d core.Dashboard, now time.Time, window time.Duration) error {
	if _, err := fmt.Fprintf(w, "%s %s\n\n", titleStyle.Render("Total expense:"), d.TotalExpense); err != nil {
		return err
	}

	if len(d.CategorySummaries) == 0 {
		if err := writeBlock(w, "Categories", empty("No categories yet.")); err != nil {
			return err
		}
	} else {
		t := newTable("Category", "Total", "Share", "Last expense")
		for _, s := range d.CategorySummaries {
			last := mutedStyle.Render("never")
			if s.LastExpenseDate != nil {
				last = s.LastExpenseDate.Format(dateLayout)
			}
			t.Row(s.Category.Name, s.TotalExpense.String(), share(s.TotalExpense, d.TotalExpense), last)
		}
		if err := writeBlock(w, "Categories", t.String()); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	return RenderBills(w, d.PendingBills, now, window)
}

func share(part, total core.Money) string {
	if total.Cents == 0 {
		return "-"
	}
	pct := float64(part.Cents) / float64(total.Cents) * 100
	bar := strings.Repeat("█", int(pct/10+0.5))
	return fmt.Sprintf("%5.1f%% %s", pct, bar)
}
