// Package charts renders dashboard series as images.
package charts

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"

	"ledger/internal/core"
)

// ErrNoChartData is returned when every slice of the series is zero.
var ErrNoChartData = errors.New("no chart data")

const (
	PieWidth  = 800
	PieHeight = 600
)

// RenderPieChart writes the series as a PNG pie chart. Zero slices are left out.
func RenderPieChart(series []core.ChartPoint, w io.Writer) error {
	values := pieValues(series)
	if len(values) == 0 {
		return ErrNoChartData
	}

	pie := chart.PieChart{
		Width:  PieWidth,
		Height: PieHeight,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   40,
				Right:  40,
				Bottom: 40,
			},
			FillColor: chart.ColorWhite,
		},
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie chart: %w", err)
	}
	return nil
}

func pieValues(series []core.ChartPoint) []chart.Value {
	var total int64
	for _, p := range series {
		if p.Value.Cents > 0 {
			total += p.Value.Cents
		}
	}

	values := make([]chart.Value, 0, len(series))
	for _, p := range series {
		if p.Value.Cents <= 0 {
			continue
		}
		share := float64(p.Value.Cents) / float64(total) * 100
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", p.Label, p.Value, share),
			Value: p.Value.Float64(),
		})
	}
	return values
}
