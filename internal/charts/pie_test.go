package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderPieChartWritesPNG(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPieChart([]core.ChartPoint{
		{Label: "Food", Value: core.Money{Cents: 7000}},
		{Label: "Transport", Value: core.Money{Cents: 3000}},
	}, &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))
}

func TestRenderPieChartWithoutData(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderPieChart(nil, &buf), ErrNoChartData)
	assert.ErrorIs(t, RenderPieChart([]core.ChartPoint{{Label: "Food"}}, &buf), ErrNoChartData)
	assert.Zero(t, buf.Len())
}

func TestPieValuesSkipZeroSlices(t *testing.T) {
	values := pieValues([]core.ChartPoint{
		{Label: "Food", Value: core.Money{Cents: 7500}},
		{Label: "Transport"},
		{Label: "Rent", Value: core.Money{Cents: 2500}},
	})
	require.Len(t, values, 2)
	assert.Equal(t, "Food: 75.00 (75.0%)", values[0].Label)
	assert.Equal(t, 75.0, values[0].Value)
	assert.Equal(t, "Rent: 25.00 (25.0%)", values[1].Label)
}
