package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
)

// ReportingService assembles the dashboard of a user.
type ReportingService struct {
	aggregates *AggregationService
}

func NewReportingService(aggregates *AggregationService) *ReportingService {
	return &ReportingService{aggregates: aggregates}
}

// BuildDashboard runs the three dashboard queries concurrently and combines
// them. The first failing query cancels the others.
func (r *ReportingService) BuildDashboard(ctx context.Context, userID string) (core.Dashboard, error) {
	var (
		total     core.Money
		summaries []core.CategorySummary
		bills     []core.Bill
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = r.aggregates.TotalExpense(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = r.aggregates.CategorySummaries(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = r.aggregates.PendingBills(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("build dashboard: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentReporting).DebugContext(ctx, "Built dashboard",
		log.FieldOperation, log.OpRender,
		log.FieldUserID, userID,
		"categories", len(summaries),
		"pending_bills", len(bills))

	if summaries == nil {
		summaries = []core.CategorySummary{}
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	return core.Dashboard{
		TotalExpense:      total,
		CategorySummaries: summaries,
		PieChartSeries:    core.PieSeries(summaries),
		PendingBills:      bills,
	}, nil
}
