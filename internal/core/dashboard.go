package core

import "time"

// CategorySummary is the per-category aggregate. LastExpenseDate is nil when the
// category has no expenses.
type CategorySummary struct {
	Category        Category
	TotalExpense    Money
	LastExpenseDate *time.Time
}

// ChartPoint is one slice of the category pie chart.
type ChartPoint struct {
	Label string
	Value Money
}

type Dashboard struct {
	TotalExpense      Money
	CategorySummaries []CategorySummary
	PieChartSeries    []ChartPoint
	PendingBills      []Bill
}

// PieSeries maps summaries to chart points, keeping their order.
func PieSeries(summaries []CategorySummary) []ChartPoint {
	points := make([]ChartPoint, 0, len(summaries))
	for _, s := range summaries {
		points = append(points, ChartPoint{Label: s.Category.Name, Value: s.TotalExpense})
	}
	return points
}
