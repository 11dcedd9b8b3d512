package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

var defaultDateLayouts = []string{"2006-01-02", time.RFC3339}

// Cleaner coerces column types, applies the missing-value policy and
// removes exact duplicates.
type Cleaner struct {
	opts   CleanerOptions
	logger *slog.Logger
}

// NewCleaner creates a cleaner. An empty default policy means drop.
func NewCleaner(opts CleanerOptions, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = PolicyDrop
	}
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = defaultDateLayouts
	}

	types := make(map[string]domain.ColumnType, len(opts.Types))
	for name, t := range opts.Types {
		types[strings.ToLower(name)] = t
	}
	opts.Types = types

	policies := make(map[string]MissingPolicy, len(opts.ColumnPolicies))
	for name, p := range opts.ColumnPolicies {
		policies[strings.ToLower(name)] = p
	}
	opts.ColumnPolicies = policies
	return &Cleaner{
		opts:   opts,
		logger: logger.With(slog.String("component", "cleaner")),
	}
}

// handledColumn is a column whose missing cells are subject to a policy
type handledColumn struct {
	index  int
	policy MissingPolicy
}

// Clean returns a new Dataset with declared types, no missing values in
// handled columns and no duplicate rows. The report is filled in even
// when an error is returned.
func (c *Cleaner) Clean(ctx context.Context, ds *domain.Dataset) (*domain.Dataset, domain.CleanReport, error) {
	report := domain.CleanReport{
		InputRows:        ds.Len(),
		FailuresByColumn: make(map[string]int),
	}
	source := ""
	if ds != nil {
		source = ds.Source
	}

	if ds.Len() == 0 {
		return nil, report, apperrors.NewDataQualityError(source, "dataset has no rows")
	}

	columns := make([]domain.Column, len(ds.Columns))
	for i, col := range ds.Columns {
		t, ok := c.opts.Types[strings.ToLower(col.Name)]
		if !ok {
			t = domain.ColumnTypeString
		}
		columns[i] = domain.Column{Name: col.Name, Type: t}
	}

	handled, err := c.handledColumns(ds, columns)
	if err != nil {
		return nil, report, err
	}

	c.logger.InfoContext(ctx, "Cleaning dataset",
		slog.String("file", source),
		slog.Int("rows", ds.Len()),
		slog.Int("handled_columns", len(handled)),
		slog.String("default_policy", string(c.opts.DefaultPolicy)))

	coerced := c.coerceRows(ds.Records, columns, &report)
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	kept := c.applyPolicies(coerced, columns, handled, &report)

	out := &domain.Dataset{Source: source, Columns: columns, Records: make([]domain.Record, 0, len(kept))}
	seen := make(map[string]bool, len(kept))
	for _, rec := range kept {
		key := out.RowKey(rec)
		if seen[key] {
			report.DuplicatesRemoved++
			continue
		}
		seen[key] = true
		out.Records = append(out.Records, rec)
	}
	report.OutputRows = out.Len()

	c.logger.InfoContext(ctx, "Dataset cleaned",
		slog.Int("input_rows", report.InputRows),
		slog.Int("output_rows", report.OutputRows),
		slog.Int("duplicates_removed", report.DuplicatesRemoved),
		slog.Int("coercion_failures", report.CoercionFailures),
		slog.Int("missing_dropped", report.MissingDropped),
		slog.Int("cells_filled", report.CellsFilled))

	if out.Len() == 0 {
		return nil, report, apperrors.NewDataQualityError(source, "no rows remain after cleaning").
			WithContext("input_rows", report.InputRows)
	}
	return out, report, nil
}

// handledColumns resolves required columns and explicit overrides to
// indices, failing on required columns absent from the header.
func (c *Cleaner) handledColumns(ds *domain.Dataset, columns []domain.Column) ([]handledColumn, error) {
	policies := make(map[int]MissingPolicy)
	for _, name := range c.opts.Required {
		idx := ds.ColumnIndex(name)
		if idx < 0 {
			return nil, apperrors.NewSchemaError(apperrors.StageClean, name, "required column not found in input").
				WithContext("file", ds.Source)
		}
		policies[idx] = c.policyFor(columns[idx])
	}
	for name := range c.opts.ColumnPolicies {
		if idx := ds.ColumnIndex(name); idx >= 0 {
			policies[idx] = c.policyFor(columns[idx])
		}
	}

	handled := make([]handledColumn, 0, len(policies))
	for idx, p := range policies {
		handled = append(handled, handledColumn{index: idx, policy: p})
	}
	sort.Slice(handled, func(i, j int) bool { return handled[i].index < handled[j].index })
	return handled, nil
}

// policyFor returns the effective policy, downgrading numeric-only
// policies on non-numeric columns.
func (c *Cleaner) policyFor(col domain.Column) MissingPolicy {
	p, ok := c.opts.ColumnPolicies[strings.ToLower(col.Name)]
	if !ok {
		p = c.opts.DefaultPolicy
	}
	if col.Type != domain.ColumnTypeNumber {
		switch p {
		case PolicyFillZero:
			return PolicyDrop
		case PolicyFillMedian:
			return PolicyFillMode
		}
	}
	return p
}

// coerceRows parses typed columns and drops rows with an unparsable cell
func (c *Cleaner) coerceRows(records []domain.Record, columns []domain.Column, report *domain.CleanReport) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		values := make([]domain.Value, len(columns))
		copy(values, rec.Values)

		ok := true
		for i, col := range columns {
			if col.Type == domain.ColumnTypeString || !values[i].Valid {
				continue
			}
			v, err := c.coerce(values[i].Str, col.Type)
			if err != nil {
				report.FailuresByColumn[col.Name]++
				ok = false
				continue
			}
			values[i] = v
		}
		if !ok {
			report.CoercionFailures++
			continue
		}
		out = append(out, domain.Record{Values: values})
	}
	return out
}

func (c *Cleaner) coerce(text string, t domain.ColumnType) (domain.Value, error) {
	switch t {
	case domain.ColumnTypeNumber:
		f, err := ParseNumber(text)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.NumberValue(f), nil
	case domain.ColumnTypeDate:
		tm, err := ParseDate(text, c.opts.DateLayouts)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.DateValue(tm), nil
	default:
		return domain.StringValue(text), nil
	}
}

// applyPolicies fills or drops rows with missing handled cells, in input order
func (c *Cleaner) applyPolicies(records []domain.Record, columns []domain.Column, handled []handledColumn, report *domain.CleanReport) []domain.Record {
	fills := make(map[int]domain.Value)
	for _, h := range handled {
		switch h.policy {
		case PolicyFillMedian:
			if v, ok := medianOf(records, h.index); ok {
				fills[h.index] = v
			}
		case PolicyFillMode:
			if v, ok := modeOf(records, h.index, columns[h.index].Type); ok {
				fills[h.index] = v
			}
		}
	}

	lastValid := make(map[int]domain.Value)
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		drop := false
		filled := 0
		for _, h := range handled {
			if rec.Values[h.index].Valid {
				continue
			}
			switch h.policy {
			case PolicyFillZero:
				rec.Values[h.index] = domain.NumberValue(0)
				filled++
			case PolicyFillForward:
				if prev, ok := lastValid[h.index]; ok {
					rec.Values[h.index] = prev
					filled++
				} else {
					drop = true
				}
			case PolicyFillMedian, PolicyFillMode:
				if fill, ok := fills[h.index]; ok {
					rec.Values[h.index] = fill
					filled++
				} else {
					drop = true
				}
			default:
				drop = true
			}
		}
		if drop {
			report.MissingDropped++
			continue
		}
		report.CellsFilled += filled
		// forward fills only carry values from rows that survive
		for _, h := range handled {
			lastValid[h.index] = rec.Values[h.index]
		}
		out = append(out, rec)
	}
	return out
}

func medianOf(records []domain.Record, idx int) (domain.Value, bool) {
	nums := make([]float64, 0, len(records))
	for _, rec := range records {
		if v := rec.Values[idx]; v.Valid {
			nums = append(nums, v.Num)
		}
	}
	if len(nums) == 0 {
		return domain.Value{}, false
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return domain.NumberValue(nums[mid]), true
	}
	return domain.NumberValue((nums[mid-1] + nums[mid]) / 2), true
}

// modeOf returns the most frequent value; ties go to the first seen
func modeOf(records []domain.Record, idx int, t domain.ColumnType) (domain.Value, bool) {
	counts := make(map[string]int)
	var (
		best      domain.Value
		bestCount int
	)
	for _, rec := range records {
		v := rec.Values[idx]
		if !v.Valid {
			continue
		}
		key := v.Key(t)
		counts[key]++
		if counts[key] > bestCount {
			best, bestCount = v, counts[key]
		}
	}
	return best, bestCount > 0
}

// ParseNumber accepts plain decimals plus thousands separators and a
// leading $, € or £.
func ParseNumber(text string) (float64, error) {
	s := strings.TrimSpace(text)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimSpace(strings.TrimLeft(s, "$€£"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid number %q", text)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", text, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	if neg {
		f = -f
	}
	return f, nil
}

// ParseDate tries each layout in order and returns the first match in UTC
func ParseDate(text string, layouts []string) (time.Time, error) {
	s := strings.TrimSpace(text)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", text)
}
