package domain

import "time"

// DateRange is the first and last order date in a dataset
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary holds the overall sales statistics
type Summary struct {
	TotalSales        float64   `json:"total_sales"`
	AverageOrderValue float64   `json:"avg_order_value"`
	TotalOrders       int       `json:"total_orders"`
	TotalRows         int       `json:"total_rows"`
	TotalQuantity     float64   `json:"total_quantity"`
	UniqueCustomers   int       `json:"unique_customers"`
	UniqueProducts    int       `json:"unique_products"`
	DateRange         DateRange `json:"date_range"`
}

// PeriodMetric aggregates one time bucket
type PeriodMetric struct {
	Period          Period   `json:"period"`
	Total           float64  `json:"total"`
	Average         float64  `json:"average"`
	Orders          int      `json:"orders"`
	Quantity        float64  `json:"quantity"`
	UniqueCustomers int      `json:"unique_customers"`
	Growth          *float64 `json:"growth"`
}

// CategoryMetric aggregates one product category
type CategoryMetric struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Average  float64 `json:"average"`
	Quantity float64 `json:"quantity"`
	Orders   int     `json:"orders"`
}

// TrendPoint is one (period, total) pair of the trend sequence
type TrendPoint struct {
	Period Period  `json:"period"`
	Total  float64 `json:"total"`
}

// GrowthPoint is the period-over-period growth rate. Rate is nil when undefined.
type GrowthPoint struct {
	Period Period   `json:"period"`
	Rate   *float64 `json:"rate"`
}

// Bin is one bucket of the order value histogram, [Lower, Upper)
// except for the last bin which includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// MetricSet is computed once from a cleaned dataset and never mutated afterwards
type MetricSet struct {
	Granularity  Granularity      `json:"granularity"`
	Summary      Summary          `json:"summary"`
	Periods      []PeriodMetric   `json:"periods"`
	Categories   []CategoryMetric `json:"categories"`
	Trend        []TrendPoint     `json:"trend"`
	Growth       []GrowthPoint    `json:"growth"`
	Distribution []Bin            `json:"distribution"`
}

// Metric names exposed by Values
const (
	MetricTotalSales      = "total_sales"
	MetricAvgOrderValue   = "avg_order_value"
	MetricTotalOrders     = "total_orders"
	MetricTotalQuantity   = "total_quantity"
	MetricUniqueCustomers = "unique_customers"
	MetricUniqueProducts  = "unique_products"
	MetricLatestGrowth    = "latest_growth"
	MetricMoMGrowth       = "mom_growth"
)

// Values flattens the scalar metrics into a name -> value map.
// Growth keys are omitted when the latest growth rate is undefined.
func (m *MetricSet) Values() map[string]float64 {
	values := map[string]float64{
		MetricTotalSales:      m.Summary.TotalSales,
		MetricAvgOrderValue:   m.Summary.AverageOrderValue,
		MetricTotalOrders:     float64(m.Summary.TotalOrders),
		MetricTotalQuantity:   m.Summary.TotalQuantity,
		MetricUniqueCustomers: float64(m.Summary.UniqueCustomers),
		MetricUniqueProducts:  float64(m.Summary.UniqueProducts),
	}
	if rate := m.LatestGrowth(); rate != nil {
		values[MetricLatestGrowth] = *rate
		if m.Granularity == GranularityMonth {
			values[MetricMoMGrowth] = *rate
		}
	}
	return values
}

// LatestGrowth returns the growth rate of the last period, or nil
func (m *MetricSet) LatestGrowth() *float64 {
	if len(m.Growth) == 0 {
		return nil
	}
	return m.Growth[len(m.Growth)-1].Rate
}
