package dataprocessing

import (
	"strings"

	"salescli/internal/config"
	"salescli/pkg/contracts/domain"
)

// MissingPolicy decides what happens to a missing cell in a handled column
type MissingPolicy string

const (
	PolicyDrop        MissingPolicy = "drop"
	PolicyFillZero    MissingPolicy = "fill_zero"
	PolicyFillForward MissingPolicy = "fill_forward"
	PolicyFillMedian  MissingPolicy = "fill_median"
	PolicyFillMode    MissingPolicy = "fill_mode"
)

// Valid reports whether p is a recognised policy
func (p MissingPolicy) Valid() bool {
	switch p {
	case PolicyDrop, PolicyFillZero, PolicyFillForward, PolicyFillMedian, PolicyFillMode:
		return true
	}
	return false
}

// CleanerOptions configures the Cleaner. Column names are matched
// case-insensitively.
type CleanerOptions struct {
	// Types declares the semantic type of columns; unlisted columns stay strings
	Types map[string]domain.ColumnType
	// Required columns must exist and end up with no missing values
	Required []string
	// DefaultPolicy applies to required columns without an override
	DefaultPolicy MissingPolicy
	// ColumnPolicies override the default; listed columns are handled even if not required
	ColumnPolicies map[string]MissingPolicy
	DateLayouts    []string
}

// ColumnMapping names the input columns that carry each sales field.
// Empty optional fields disable the metrics that depend on them.
type ColumnMapping struct {
	OrderID  string
	Date     string
	Category string
	Product  string
	Customer string
	Quantity string
	Amount   string
}

// AggregatorOptions configures the Aggregator
type AggregatorOptions struct {
	Columns       ColumnMapping
	Granularity   domain.Granularity
	FillGaps      bool
	HistogramBins int
}

// MappingFromConfig converts the configured column names
func MappingFromConfig(c config.ColumnsConfig) ColumnMapping {
	return ColumnMapping{
		OrderID:  c.OrderID,
		Date:     c.Date,
		Category: c.Category,
		Product:  c.Product,
		Customer: c.Customer,
		Quantity: c.Quantity,
		Amount:   c.Amount,
	}
}

// CleanerOptionsFromConfig derives column types from the mapping plus the
// explicit number/date column lists.
func CleanerOptionsFromConfig(cfg *config.Config) CleanerOptions {
	types := make(map[string]domain.ColumnType)
	set := func(name string, t domain.ColumnType) {
		if name != "" {
			types[strings.ToLower(name)] = t
		}
	}
	set(cfg.Columns.Amount, domain.ColumnTypeNumber)
	set(cfg.Columns.Quantity, domain.ColumnTypeNumber)
	set(cfg.Columns.Date, domain.ColumnTypeDate)
	for _, c := range cfg.Cleaning.NumberColumns {
		set(c, domain.ColumnTypeNumber)
	}
	for _, c := range cfg.Cleaning.DateColumns {
		set(c, domain.ColumnTypeDate)
	}

	policies := make(map[string]MissingPolicy, len(cfg.Cleaning.ColumnPolicies))
	for col, p := range cfg.Cleaning.ColumnPolicies {
		policies[strings.ToLower(col)] = MissingPolicy(p)
	}

	return CleanerOptions{
		Types:          types,
		Required:       cfg.RequiredColumns(),
		DefaultPolicy:  MissingPolicy(cfg.Cleaning.MissingPolicy),
		ColumnPolicies: policies,
		DateLayouts:    cfg.Cleaning.DateLayouts,
	}
}

// AggregatorOptionsFromConfig builds aggregator options from the config
func AggregatorOptionsFromConfig(cfg *config.Config) AggregatorOptions {
	return AggregatorOptions{
		Columns:       MappingFromConfig(cfg.Columns),
		Granularity:   domain.Granularity(cfg.Aggregation.Granularity),
		FillGaps:      cfg.Aggregation.FillGaps,
		HistogramBins: cfg.Aggregation.HistogramBins,
	}
}
