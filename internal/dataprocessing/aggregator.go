package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

const (
	defaultHistogramBins = 30
	// missingCategory groups rows whose category cell is empty
	missingCategory = "(none)"
)

// Aggregator computes a MetricSet from a cleaned Dataset
type Aggregator struct {
	opts   AggregatorOptions
	logger *slog.Logger
}

// NewAggregator creates an aggregator; unset granularity means month
func NewAggregator(opts AggregatorOptions, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.Granularity.Valid() {
		opts.Granularity = domain.GranularityMonth
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = defaultHistogramBins
	}
	return &Aggregator{
		opts:   opts,
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

// boundColumns holds resolved column indices; -1 means unused
type boundColumns struct {
	date, amount, category, orderID, product, customer, quantity int
}

// bucket accumulates one group (a period, a category or the whole set)
type bucket struct {
	total     float64
	rows      int
	anonymous int
	quantity  float64
	orders    map[string]bool
	customers map[string]bool
}

func newBucket() *bucket {
	return &bucket{orders: make(map[string]bool), customers: make(map[string]bool)}
}

// orderCount counts distinct order ids; rows without an id are orders of their own
func (b *bucket) orderCount() int {
	return len(b.orders) + b.anonymous
}

func (b *bucket) average() float64 {
	if b.rows == 0 {
		return 0
	}
	return b.total / float64(b.rows)
}

// Aggregate computes totals, averages, trend, growth and distribution
func (a *Aggregator) Aggregate(ctx context.Context, ds *domain.Dataset) (*domain.MetricSet, error) {
	cols, err := a.bind(ds)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeDataQuality, apperrors.StageAggregate,
			fmt.Sprintf("%s: dataset has no rows", ds.Source), nil).WithContext("file", ds.Source)
	}

	a.logger.InfoContext(ctx, "Aggregating dataset",
		slog.Int("rows", ds.Len()),
		slog.String("granularity", string(a.opts.Granularity)),
		slog.Bool("fill_gaps", a.opts.FillGaps))

	overall := newBucket()
	periods := make(map[time.Time]*bucket)
	categories := make(map[string]*bucket)
	products := make(map[string]bool)
	orderValues := make(map[string]float64)
	var (
		orderKeys  []string
		rowValues  []float64
		dateRange  domain.DateRange
		skipped    int
		haveDates  bool
		useOrderID = cols.orderID >= 0
	)

	for n, rec := range ds.Records {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dateVal, amountVal := rec.Values[cols.date], rec.Values[cols.amount]
		if !dateVal.Valid || !amountVal.Valid {
			skipped++
			continue
		}
		amount := amountVal.Num
		date := dateVal.Time

		if !haveDates || date.Before(dateRange.Start) {
			dateRange.Start = date
		}
		if !haveDates || date.After(dateRange.End) {
			dateRange.End = date
		}
		haveDates = true

		orderID := ""
		if useOrderID && rec.Values[cols.orderID].Valid {
			orderID = rec.Values[cols.orderID].Str
		}
		customer := ""
		if cols.customer >= 0 && rec.Values[cols.customer].Valid {
			customer = rec.Values[cols.customer].Str
		}
		quantity := 0.0
		if cols.quantity >= 0 && rec.Values[cols.quantity].Valid {
			quantity = rec.Values[cols.quantity].Num
		}
		if cols.product >= 0 && rec.Values[cols.product].Valid {
			products[rec.Values[cols.product].Str] = true
		}

		period := domain.PeriodOf(date, a.opts.Granularity)
		pb, ok := periods[period.Start]
		if !ok {
			pb = newBucket()
			periods[period.Start] = pb
		}

		groups := []*bucket{overall, pb}
		if cols.category >= 0 {
			name := missingCategory
			if v := rec.Values[cols.category]; v.Valid {
				name = v.Str
			}
			cb, ok := categories[name]
			if !ok {
				cb = newBucket()
				categories[name] = cb
			}
			groups = append(groups, cb)
		}
		for _, b := range groups {
			b.total += amount
			b.rows++
			b.quantity += quantity
			if orderID != "" {
				b.orders[orderID] = true
			} else {
				b.anonymous++
			}
			if customer != "" {
				b.customers[customer] = true
			}
		}

		if orderID != "" {
			if _, seen := orderValues[orderID]; !seen {
				orderKeys = append(orderKeys, orderID)
			}
			orderValues[orderID] += amount
		} else {
			rowValues = append(rowValues, amount)
		}
	}

	if overall.rows == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeDataQuality, apperrors.StageAggregate,
			fmt.Sprintf("%s: no rows with both date and amount", ds.Source), nil).WithContext("file", ds.Source)
	}

	totalOrders := overall.orderCount()
	metrics := &domain.MetricSet{
		Granularity: a.opts.Granularity,
		Summary: domain.Summary{
			TotalSales:        overall.total,
			AverageOrderValue: overall.total / float64(totalOrders),
			TotalOrders:       totalOrders,
			TotalRows:         overall.rows,
			TotalQuantity:     overall.quantity,
			UniqueCustomers:   len(overall.customers),
			UniqueProducts:    len(products),
			DateRange:         dateRange,
		},
		Categories: categoryMetrics(categories),
	}

	metrics.Periods = a.periodMetrics(periods)
	for _, p := range metrics.Periods {
		metrics.Trend = append(metrics.Trend, domain.TrendPoint{Period: p.Period, Total: p.Total})
		metrics.Growth = append(metrics.Growth, domain.GrowthPoint{Period: p.Period, Rate: p.Growth})
	}

	values := rowValues
	for _, id := range orderKeys {
		values = append(values, orderValues[id])
	}
	metrics.Distribution = Histogram(values, a.opts.HistogramBins)

	a.logger.InfoContext(ctx, "Dataset aggregated",
		slog.Float64("total_sales", metrics.Summary.TotalSales),
		slog.Int("total_orders", metrics.Summary.TotalOrders),
		slog.Int("periods", len(metrics.Periods)),
		slog.Int("categories", len(metrics.Categories)),
		slog.Int("rows_skipped", skipped))

	return metrics, nil
}

// bind resolves the column mapping against the schema
func (a *Aggregator) bind(ds *domain.Dataset) (boundColumns, error) {
	cols := boundColumns{-1, -1, -1, -1, -1, -1, -1}
	m := a.opts.Columns

	required := func(name string, want domain.ColumnType) (int, error) {
		if name == "" {
			return -1, apperrors.NewSchemaError(apperrors.StageAggregate, name, "column mapping is empty")
		}
		idx := ds.ColumnIndex(name)
		if idx < 0 {
			return -1, apperrors.NewSchemaError(apperrors.StageAggregate, name, "required column not found")
		}
		if want != "" && ds.Columns[idx].Type != want {
			return -1, apperrors.NewSchemaError(apperrors.StageAggregate, name,
				fmt.Sprintf("expected %s column, found %s", want, ds.Columns[idx].Type))
		}
		return idx, nil
	}

	var err error
	if cols.date, err = required(m.Date, domain.ColumnTypeDate); err != nil {
		return cols, err
	}
	if cols.amount, err = required(m.Amount, domain.ColumnTypeNumber); err != nil {
		return cols, err
	}
	if m.Category != "" {
		if cols.category, err = required(m.Category, ""); err != nil {
			return cols, err
		}
	}

	cols.orderID = ds.ColumnIndex(m.OrderID)
	cols.product = ds.ColumnIndex(m.Product)
	cols.customer = ds.ColumnIndex(m.Customer)
	if idx := ds.ColumnIndex(m.Quantity); idx >= 0 && ds.Columns[idx].Type == domain.ColumnTypeNumber {
		cols.quantity = idx
	}
	return cols, nil
}

// periodMetrics orders buckets by calendar start, optionally inserting
// empty periods, and computes growth against the preceding entry.
func (a *Aggregator) periodMetrics(periods map[time.Time]*bucket) []domain.PeriodMetric {
	starts := make([]time.Time, 0, len(periods))
	for start := range periods {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	var ordered []domain.Period
	for i, start := range starts {
		p := domain.Period{Start: start, Granularity: a.opts.Granularity}
		if a.opts.FillGaps && i > 0 {
			for gap := ordered[len(ordered)-1].Next(); gap.Before(p); gap = gap.Next() {
				ordered = append(ordered, gap)
			}
		}
		ordered = append(ordered, p)
	}

	out := make([]domain.PeriodMetric, 0, len(ordered))
	for i, p := range ordered {
		pm := domain.PeriodMetric{Period: p}
		if b, ok := periods[p.Start]; ok {
			pm.Total = b.total
			pm.Average = b.average()
			pm.Orders = b.orderCount()
			pm.Quantity = b.quantity
			pm.UniqueCustomers = len(b.customers)
		}
		if i > 0 {
			pm.Growth = GrowthRate(out[i-1].Total, pm.Total)
		}
		out = append(out, pm)
	}
	return out
}

// categoryMetrics sorts categories by total descending, then name
func categoryMetrics(categories map[string]*bucket) []domain.CategoryMetric {
	out := make([]domain.CategoryMetric, 0, len(categories))
	for name, b := range categories {
		out = append(out, domain.CategoryMetric{
			Category: name,
			Total:    b.total,
			Average:  b.average(),
			Quantity: b.quantity,
			Orders:   b.orderCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// GrowthRate returns (current-previous)/previous, or nil when previous is zero
func GrowthRate(previous, current float64) *float64 {
	if previous == 0 {
		return nil
	}
	rate := (current - previous) / previous
	return &rate
}

// Histogram splits values into equal-width bins over [min, max]. The last
// bin is closed on both ends. All-equal values, or a range with infinite
// endpoints, produce a single bin.
func Histogram(values []float64, bins int) []domain.Bin {
	if len(values) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = defaultHistogramBins
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []domain.Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	// hi-lo overflows near ±MaxFloat64; divide before subtracting
	scaled := math.IsInf(hi-lo, 0)
	if scaled {
		width = hi/float64(bins) - lo/float64(bins)
	}
	if width == 0 || math.IsInf(width, 0) || math.IsNaN(width) {
		return []domain.Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	edge := func(i int) float64 {
		if scaled {
			f := float64(i) / float64(bins)
			return lo*(1-f) + hi*f
		}
		return lo + float64(i)*width
	}
	out := make([]domain.Bin, bins)
	for i := range out {
		out[i].Lower = edge(i)
		out[i].Upper = edge(i + 1)
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		pos := (v - lo) / width
		if scaled {
			pos = v/width - lo/width
		}
		idx := bins - 1
		switch {
		case math.IsNaN(pos) || pos < 0:
			idx = 0
		case pos < float64(bins):
			idx = int(pos)
		}
		out[idx].Count++
	}
	return out
}
