package exporter

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"salescli/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func rate(f float64) *float64 {
	return &f
}

func month(year int, m time.Month) domain.Period {
	return domain.PeriodOf(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC), domain.GranularityMonth)
}

// sampleMetrics mirrors two months of sales: 10 in January, 20 in February
func sampleMetrics(t *testing.T) *domain.MetricSet {
	t.Helper()
	jan, feb := month(2024, time.January), month(2024, time.February)
	return &domain.MetricSet{
		Granularity: domain.GranularityMonth,
		Summary: domain.Summary{
			TotalSales:        30,
			AverageOrderValue: 15,
			TotalOrders:       2,
			TotalRows:         2,
			TotalQuantity:     3,
			UniqueCustomers:   2,
			UniqueProducts:    2,
			DateRange: domain.DateRange{
				Start: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
			},
		},
		Periods: []domain.PeriodMetric{
			{Period: jan, Total: 10, Average: 10, Orders: 1, Quantity: 1, UniqueCustomers: 1},
			{Period: feb, Total: 20, Average: 20, Orders: 1, Quantity: 2, UniqueCustomers: 1, Growth: rate(1)},
		},
		Categories: []domain.CategoryMetric{
			{Category: "Books", Total: 20, Average: 20, Quantity: 2, Orders: 1},
			{Category: "Games", Total: 10, Average: 10, Quantity: 1, Orders: 1},
		},
		Trend: []domain.TrendPoint{
			{Period: jan, Total: 10},
			{Period: feb, Total: 20},
		},
		Growth: []domain.GrowthPoint{
			{Period: jan},
			{Period: feb, Rate: rate(1)},
		},
		Distribution: []domain.Bin{
			{Lower: 10, Upper: 15, Count: 1},
			{Lower: 15, Upper: 20, Count: 1},
		},
	}
}

func sampleDataset() *domain.Dataset {
	return &domain.Dataset{
		Source: "sales.csv",
		Columns: []domain.Column{
			{Name: "order_id", Type: domain.ColumnTypeString},
			{Name: "order_date", Type: domain.ColumnTypeDate},
			{Name: "category", Type: domain.ColumnTypeString},
			{Name: "total_amount", Type: domain.ColumnTypeNumber},
		},
		Records: []domain.Record{
			{Values: []domain.Value{
				domain.StringValue("A-1"),
				domain.DateValue(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
				domain.StringValue("Games"),
				domain.NumberValue(10),
			}},
			{Values: []domain.Value{
				domain.StringValue("A-2"),
				domain.DateValue(time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)),
				domain.StringValue("Books"),
				domain.NumberValue(20),
			}},
		},
	}
}

func sampleCleanReport() *domain.CleanReport {
	return &domain.CleanReport{InputRows: 3, OutputRows: 2, DuplicatesRemoved: 1}
}
