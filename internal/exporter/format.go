package exporter

import (
	"fmt"
	"strconv"
	"time"

	"salescli/pkg/contracts/domain"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatRate keeps full precision for ratios such as growth
func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// formatGrowth renders an undefined growth rate as an empty cell
func formatGrowth(rate *float64) string {
	if rate == nil {
		return ""
	}
	return formatRate(*rate)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatValue renders a typed cell; missing cells are empty
func formatValue(v domain.Value, t domain.ColumnType) string {
	if !v.Valid {
		return ""
	}
	switch t {
	case domain.ColumnTypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case domain.ColumnTypeDate:
		if v.Time.Hour() != 0 || v.Time.Minute() != 0 || v.Time.Second() != 0 {
			return v.Time.Format("2006-01-02 15:04:05")
		}
		return v.Time.Format("2006-01-02")
	default:
		return v.Str
	}
}
