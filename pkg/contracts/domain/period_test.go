package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodOf(t *testing.T) {
	ts := time.Date(2024, time.August, 14, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		granularity Granularity
		start       string
		label       string
		next        string
	}{
		{GranularityDay, "2024-08-14", "2024-08-14", "2024-08-15"},
		{GranularityWeek, "2024-08-12", "2024-W33", "2024-08-19"},
		{GranularityMonth, "2024-08-01", "2024-08", "2024-09-01"},
		{GranularityQuarter, "2024-07-01", "2024-Q3", "2024-10-01"},
		{GranularityYear, "2024-01-01", "2024", "2025-01-01"},
		{Granularity("fortnight"), "2024-08-01", "2024-08", "2024-09-01"},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			p := PeriodOf(ts, tt.granularity)
			assert.Equal(t, tt.start, p.Start.Format("2006-01-02"))
			assert.Equal(t, tt.label, p.Label())
			assert.Equal(t, tt.next, p.Next().Start.Format("2006-01-02"))
			assert.True(t, p.Before(p.Next()))
			assert.False(t, p.Next().Before(p))
		})
	}
}

func TestPeriodOf_WeekCrossesYear(t *testing.T) {
	p := PeriodOf(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), GranularityWeek)
	assert.Equal(t, "2024-12-30", p.Start.Format("2006-01-02"))
	assert.Equal(t, "2025-W01", p.Label())
}

func TestPeriod_MarshalsAsLabel(t *testing.T) {
	p := PeriodOf(time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), GranularityQuarter)
	data, err := json.Marshal(TrendPoint{Period: p, Total: 12.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2024-Q1","total":12.5}`, string(data))
}

func TestMetricSet_Values(t *testing.T) {
	rate := 0.25
	m := &MetricSet{
		Granularity: GranularityMonth,
		Summary:     Summary{TotalSales: 100, AverageOrderValue: 20, TotalOrders: 5},
		Growth:      []GrowthPoint{{Rate: nil}, {Rate: &rate}},
	}

	values := m.Values()
	assert.Equal(t, 100.0, values[MetricTotalSales])
	assert.Equal(t, 5.0, values[MetricTotalOrders])
	assert.Equal(t, 0.25, values[MetricLatestGrowth])
	assert.Equal(t, 0.25, values[MetricMoMGrowth])

	m.Granularity = GranularityWeek
	assert.NotContains(t, m.Values(), MetricMoMGrowth)

	m.Growth = m.Growth[:1]
	assert.NotContains(t, m.Values(), MetricLatestGrowth)
}
