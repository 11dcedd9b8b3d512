package dataprocessing

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var salesColumns = []domain.Column{
	{Name: "order_id", Type: domain.ColumnTypeString},
	{Name: "order_date", Type: domain.ColumnTypeDate},
	{Name: "category", Type: domain.ColumnTypeString},
	{Name: "customer_id", Type: domain.ColumnTypeString},
	{Name: "quantity", Type: domain.ColumnTypeNumber},
	{Name: "total_amount", Type: domain.ColumnTypeNumber},
}

// typedDataset builds a cleaned dataset; nil cells are missing
func typedDataset(columns []domain.Column, rows ...[]interface{}) *domain.Dataset {
	ds := &domain.Dataset{Source: "test.csv", Columns: columns}
	for _, row := range rows {
		values := make([]domain.Value, len(row))
		for i, cell := range row {
			switch v := cell.(type) {
			case nil:
				values[i] = domain.Missing()
			case float64:
				values[i] = domain.NumberValue(v)
			case int:
				values[i] = domain.NumberValue(float64(v))
			case time.Time:
				values[i] = domain.DateValue(v)
			case string:
				values[i] = domain.StringValue(v)
			}
		}
		ds.Records = append(ds.Records, domain.Record{Values: values})
	}
	return ds
}

func testAggregatorOptions() AggregatorOptions {
	return AggregatorOptionsFromConfig(config.Default())
}

func TestAggregator_DuplicateDropScenario(t *testing.T) {
	raw := rawDataset([]string{"order_date", "category", "total_amount"},
		[]string{"2024-01", "A", "10.0"},
		[]string{"2024-01", "A", "10.0"},
		[]string{"2024-02", "B", "20.0"},
	)
	clean, _, err := NewCleaner(testCleanerOptions(), nil).Clean(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 2, clean.Len())

	metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), clean)
	require.NoError(t, err)

	assert.InDelta(t, 30.0, metrics.Summary.TotalSales, 1e-9)
	require.Len(t, metrics.Trend, 2)
	assert.Equal(t, "2024-01", metrics.Trend[0].Period.Label())
	assert.InDelta(t, 10.0, metrics.Trend[0].Total, 1e-9)
	assert.Equal(t, "2024-02", metrics.Trend[1].Period.Label())
	assert.InDelta(t, 20.0, metrics.Trend[1].Total, 1e-9)

	require.Len(t, metrics.Growth, 2)
	assert.Nil(t, metrics.Growth[0].Rate)
	require.NotNil(t, metrics.Growth[1].Rate)
	assert.InDelta(t, 1.0, *metrics.Growth[1].Rate, 1e-9)

	values := metrics.Values()
	assert.InDelta(t, 30.0, values[domain.MetricTotalSales], 1e-9)
	assert.InDelta(t, 15.0, values[domain.MetricAvgOrderValue], 1e-9)
	assert.InDelta(t, 1.0, values[domain.MetricMoMGrowth], 1e-9)
}

func TestAggregator_Summary(t *testing.T) {
	ds := typedDataset(salesColumns,
		[]interface{}{"o1", day("2024-01-05"), "Books", "c1", 1, 10.0},
		[]interface{}{"o1", day("2024-01-05"), "Toys", "c1", 2, 5.0},
		[]interface{}{"o2", day("2024-03-20"), "Books", "c2", 1, 20.0},
		[]interface{}{nil, day("2024-02-11"), "Games", "c3", nil, 15.0},
	)

	metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	s := metrics.Summary
	assert.InDelta(t, 50.0, s.TotalSales, 1e-9)
	assert.Equal(t, 3, s.TotalOrders, "two distinct ids plus one row without id")
	assert.Equal(t, 4, s.TotalRows)
	assert.InDelta(t, 50.0/3, s.AverageOrderValue, 1e-9)
	assert.InDelta(t, 4.0, s.TotalQuantity, 1e-9)
	assert.Equal(t, 3, s.UniqueCustomers)
	assert.Equal(t, 0, s.UniqueProducts, "product column is absent")
	assert.Equal(t, day("2024-01-05"), s.DateRange.Start)
	assert.Equal(t, day("2024-03-20"), s.DateRange.End)

	require.Len(t, metrics.Categories, 3)
	assert.Equal(t, "Books", metrics.Categories[0].Category)
	assert.InDelta(t, 30.0, metrics.Categories[0].Total, 1e-9)
	assert.InDelta(t, 15.0, metrics.Categories[0].Average, 1e-9)
	assert.Equal(t, 2, metrics.Categories[0].Orders)
	assert.Equal(t, "Games", metrics.Categories[1].Category)
	assert.Equal(t, "Toys", metrics.Categories[2].Category)

	require.Len(t, metrics.Periods, 3)
	jan := metrics.Periods[0]
	assert.Equal(t, "2024-01", jan.Period.Label())
	assert.Equal(t, 1, jan.Orders)
	assert.Equal(t, 1, jan.UniqueCustomers)
	assert.InDelta(t, 7.5, jan.Average, 1e-9)

	var binned int
	for _, b := range metrics.Distribution {
		binned += b.Count
	}
	assert.Equal(t, 3, binned, "histogram counts order values")
}

func TestAggregator_CategoryTiesSortByName(t *testing.T) {
	ds := typedDataset(salesColumns,
		[]interface{}{"1", day("2024-01-01"), "Zeta", nil, nil, 10.0},
		[]interface{}{"2", day("2024-01-01"), "Alpha", nil, nil, 10.0},
		[]interface{}{"3", day("2024-01-01"), nil, nil, nil, 1.0},
	)

	metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, metrics.Categories, 3)
	assert.Equal(t, "Alpha", metrics.Categories[0].Category)
	assert.Equal(t, "Zeta", metrics.Categories[1].Category)
	assert.Equal(t, missingCategory, metrics.Categories[2].Category)
}

func randomSales(rng *rand.Rand, n int) *domain.Dataset {
	categories := []string{"Books", "Toys", "Games", "Garden"}
	start := day("2023-01-01")
	rows := make([][]interface{}, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []interface{}{
			nil,
			start.AddDate(0, 0, rng.Intn(730)),
			categories[rng.Intn(len(categories))],
			nil,
			rng.Intn(5) + 1,
			float64(rng.Intn(50000)) / 100,
		})
	}
	return typedDataset(salesColumns, rows...)
}

func TestAggregator_GroupingIsAPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, g := range []domain.Granularity{
		domain.GranularityDay, domain.GranularityWeek, domain.GranularityMonth,
		domain.GranularityQuarter, domain.GranularityYear,
	} {
		t.Run(string(g), func(t *testing.T) {
			opts := testAggregatorOptions()
			opts.Granularity = g

			metrics, err := NewAggregator(opts, nil).Aggregate(context.Background(), randomSales(rng, 1000))
			require.NoError(t, err)

			var byPeriod, byCategory float64
			var rows int
			for _, p := range metrics.Periods {
				byPeriod += p.Total
			}
			for _, c := range metrics.Categories {
				byCategory += c.Total
				rows += c.Orders
			}
			assert.InDelta(t, metrics.Summary.TotalSales, byPeriod, 1e-6)
			assert.InDelta(t, metrics.Summary.TotalSales, byCategory, 1e-6)
			assert.Equal(t, metrics.Summary.TotalRows, rows)
		})
	}
}

func TestAggregator_TrendSortedForAnyRowOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	ds := randomSales(rng, 300)

	for i := 0; i < 5; i++ {
		rng.Shuffle(len(ds.Records), func(a, b int) {
			ds.Records[a], ds.Records[b] = ds.Records[b], ds.Records[a]
		})

		metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
		require.NoError(t, err)

		for j := 1; j < len(metrics.Trend); j++ {
			assert.True(t, metrics.Trend[j-1].Period.Before(metrics.Trend[j].Period),
				"trend out of order at %d: %s then %s", j, metrics.Trend[j-1].Period, metrics.Trend[j].Period)
		}
	}
}

func TestAggregator_GrowthMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), randomSales(rng, 500))
	require.NoError(t, err)

	require.Equal(t, len(metrics.Trend), len(metrics.Growth))
	assert.Nil(t, metrics.Growth[0].Rate)
	for i := 1; i < len(metrics.Growth); i++ {
		prev, cur := metrics.Trend[i-1].Total, metrics.Trend[i].Total
		if prev == 0 {
			assert.Nil(t, metrics.Growth[i].Rate)
			continue
		}
		require.NotNil(t, metrics.Growth[i].Rate)
		assert.InDelta(t, (cur-prev)/prev, *metrics.Growth[i].Rate, 1e-9)
	}
}

func TestAggregator_GrowthNullAfterZeroPeriod(t *testing.T) {
	ds := typedDataset(salesColumns,
		[]interface{}{"1", day("2024-01-10"), "A", nil, nil, 0.0},
		[]interface{}{"2", day("2024-02-10"), "A", nil, nil, 25.0},
		[]interface{}{"3", day("2024-03-10"), "A", nil, nil, 50.0},
	)

	metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, metrics.Growth, 3)
	assert.Nil(t, metrics.Growth[0].Rate)
	assert.Nil(t, metrics.Growth[1].Rate, "previous period total is zero")
	require.NotNil(t, metrics.Growth[2].Rate)
	assert.InDelta(t, 1.0, *metrics.Growth[2].Rate, 1e-9)
}

func TestAggregator_FillGaps(t *testing.T) {
	ds := typedDataset(salesColumns,
		[]interface{}{"1", day("2024-01-10"), "A", nil, nil, 10.0},
		[]interface{}{"2", day("2024-03-10"), "A", nil, nil, 30.0},
	)

	t.Run("observed periods only", func(t *testing.T) {
		metrics, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
		require.NoError(t, err)
		require.Len(t, metrics.Trend, 2)
		require.NotNil(t, metrics.Growth[1].Rate)
		assert.InDelta(t, 2.0, *metrics.Growth[1].Rate, 1e-9)
	})

	t.Run("calendar periods", func(t *testing.T) {
		opts := testAggregatorOptions()
		opts.FillGaps = true
		metrics, err := NewAggregator(opts, nil).Aggregate(context.Background(), ds)
		require.NoError(t, err)

		require.Len(t, metrics.Trend, 3)
		assert.Equal(t, "2024-02", metrics.Trend[1].Period.Label())
		assert.Equal(t, 0.0, metrics.Trend[1].Total)
		assert.Equal(t, 0, metrics.Periods[1].Orders)
		require.NotNil(t, metrics.Growth[1].Rate)
		assert.InDelta(t, -1.0, *metrics.Growth[1].Rate, 1e-9)
		assert.Nil(t, metrics.Growth[2].Rate)
	})
}

func TestAggregator_Granularities(t *testing.T) {
	ds := typedDataset(salesColumns,
		[]interface{}{"1", day("2024-01-03"), "A", nil, nil, 10.0},
		[]interface{}{"2", day("2024-05-10"), "A", nil, nil, 10.0},
	)

	tests := []struct {
		granularity domain.Granularity
		labels      []string
		latestKey   string
	}{
		{domain.GranularityDay, []string{"2024-01-03", "2024-05-10"}, domain.MetricLatestGrowth},
		{domain.GranularityWeek, []string{"2024-W01", "2024-W19"}, domain.MetricLatestGrowth},
		{domain.GranularityMonth, []string{"2024-01", "2024-05"}, domain.MetricMoMGrowth},
		{domain.GranularityQuarter, []string{"2024-Q1", "2024-Q2"}, domain.MetricLatestGrowth},
		{domain.GranularityYear, []string{"2024"}, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			opts := testAggregatorOptions()
			opts.Granularity = tt.granularity

			metrics, err := NewAggregator(opts, nil).Aggregate(context.Background(), ds)
			require.NoError(t, err)

			var labels []string
			for _, p := range metrics.Trend {
				labels = append(labels, p.Period.Label())
			}
			assert.Equal(t, tt.labels, labels)

			values := metrics.Values()
			if tt.latestKey == "" {
				assert.NotContains(t, values, domain.MetricLatestGrowth)
				return
			}
			assert.Contains(t, values, tt.latestKey)
		})
	}
}

func TestAggregator_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AggregatorOptions)
		column string
	}{
		{"amount column absent", func(o *AggregatorOptions) { o.Columns.Amount = "revenue" }, "revenue"},
		{"date column absent", func(o *AggregatorOptions) { o.Columns.Date = "sold_on" }, "sold_on"},
		{"category mapped but absent", func(o *AggregatorOptions) { o.Columns.Category = "segment" }, "segment"},
		{"amount not numeric", func(o *AggregatorOptions) { o.Columns.Amount = "category" }, "category"},
		{"date not a date", func(o *AggregatorOptions) { o.Columns.Date = "total_amount" }, "total_amount"},
	}

	ds := typedDataset(salesColumns,
		[]interface{}{"1", day("2024-01-01"), "A", "c", 1, 10.0},
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testAggregatorOptions()
			tt.modify(&opts)

			_, err := NewAggregator(opts, nil).Aggregate(context.Background(), ds)
			assert.ErrorIs(t, err, apperrors.ErrSchema)
			appErr := requireAppError(t, err, apperrors.ErrTypeSchema)
			assert.Equal(t, apperrors.StageAggregate, appErr.Stage)
			assert.Equal(t, tt.column, appErr.Context["column"])
		})
	}
}

func TestAggregator_OptionalColumnsMayBeAbsent(t *testing.T) {
	columns := []domain.Column{
		{Name: "order_date", Type: domain.ColumnTypeDate},
		{Name: "total_amount", Type: domain.ColumnTypeNumber},
	}
	ds := typedDataset(columns,
		[]interface{}{day("2024-01-01"), 4.0},
		[]interface{}{day("2024-01-02"), 6.0},
	)
	opts := testAggregatorOptions()
	opts.Columns.Category = ""

	metrics, err := NewAggregator(opts, nil).Aggregate(context.Background(), ds)
	require.NoError(t, err)
	assert.Empty(t, metrics.Categories)
	assert.Equal(t, 2, metrics.Summary.TotalOrders)
	assert.InDelta(t, 5.0, metrics.Summary.AverageOrderValue, 1e-9)
}

func TestAggregator_EmptyDataset(t *testing.T) {
	ds := typedDataset(salesColumns)
	_, err := NewAggregator(testAggregatorOptions(), nil).Aggregate(context.Background(), ds)
	appErr := requireAppError(t, err, apperrors.ErrTypeDataQuality)
	assert.Equal(t, apperrors.StageAggregate, appErr.Stage)
}

func TestGrowthRate(t *testing.T) {
	assert.Nil(t, GrowthRate(0, 10))
	rate := GrowthRate(10, 5)
	require.NotNil(t, rate)
	assert.InDelta(t, -0.5, *rate, 1e-12)
}

func TestHistogram(t *testing.T) {
	t.Run("equal width bins", func(t *testing.T) {
		bins := Histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 5)
		require.Len(t, bins, 5)
		for _, b := range bins {
			assert.Equal(t, 2, b.Count)
		}
		assert.Equal(t, 0.0, bins[0].Lower)
		assert.Equal(t, 9.0, bins[4].Upper)
	})

	t.Run("identical values", func(t *testing.T) {
		bins := Histogram([]float64{3, 3, 3}, 30)
		require.Len(t, bins, 1)
		assert.Equal(t, domain.Bin{Lower: 3, Upper: 3, Count: 3}, bins[0])
	})

	t.Run("no values", func(t *testing.T) {
		assert.Nil(t, Histogram(nil, 10))
	})

	t.Run("range wider than float64", func(t *testing.T) {
		bins := Histogram([]float64{-1e308, 0, 1e308}, 10)
		require.Len(t, bins, 10)
		total := 0
		for _, b := range bins {
			assert.False(t, math.IsInf(b.Lower, 0) || math.IsNaN(b.Lower), "lower %v", b.Lower)
			assert.False(t, math.IsInf(b.Upper, 0) || math.IsNaN(b.Upper), "upper %v", b.Upper)
			total += b.Count
		}
		assert.Equal(t, 3, total)
		assert.Equal(t, 1, bins[0].Count)
		assert.Equal(t, 1, bins[9].Count)
		assert.Equal(t, -1e308, bins[0].Lower)
		assert.Equal(t, 1e308, bins[9].Upper)
	})

	t.Run("infinite values fall back to one bin", func(t *testing.T) {
		bins := Histogram([]float64{1, math.Inf(1)}, 5)
		require.Len(t, bins, 1)
		assert.Equal(t, 2, bins[0].Count)
	})
}
