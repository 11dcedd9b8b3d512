package domain

import (
	"fmt"
	"time"
)

// Granularity is the size of a time bucket
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// Valid reports whether g is a known granularity
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return true
	}
	return false
}

// Period is a calendar bucket identified by its first day
type Period struct {
	Start       time.Time   `json:"start"`
	Granularity Granularity `json:"granularity"`
}

// PeriodOf returns the bucket containing t. Weeks start on Monday.
func PeriodOf(t time.Time, g Granularity) Period {
	y, m, d := t.Date()
	var start time.Time
	switch g {
	case GranularityDay:
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
	case GranularityQuarter:
		q := (int(m) - 1) / 3
		start = time.Date(y, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		g = GranularityMonth
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return Period{Start: start, Granularity: g}
}

// Next returns the following period
func (p Period) Next() Period {
	var next time.Time
	switch p.Granularity {
	case GranularityDay:
		next = p.Start.AddDate(0, 0, 1)
	case GranularityWeek:
		next = p.Start.AddDate(0, 0, 7)
	case GranularityQuarter:
		next = p.Start.AddDate(0, 3, 0)
	case GranularityYear:
		next = p.Start.AddDate(1, 0, 0)
	default:
		next = p.Start.AddDate(0, 1, 0)
	}
	return Period{Start: next, Granularity: p.Granularity}
}

// Before orders periods by calendar start
func (p Period) Before(o Period) bool {
	return p.Start.Before(o.Start)
}

// Label renders the period for reports
func (p Period) Label() string {
	switch p.Granularity {
	case GranularityDay:
		return p.Start.Format("2006-01-02")
	case GranularityWeek:
		y, w := p.Start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case GranularityQuarter:
		return fmt.Sprintf("%04d-Q%d", p.Start.Year(), (int(p.Start.Month())-1)/3+1)
	case GranularityYear:
		return p.Start.Format("2006")
	default:
		return p.Start.Format("2006-01")
	}
}

// String implements fmt.Stringer
func (p Period) String() string {
	return p.Label()
}

// MarshalText lets periods be used as JSON map keys and values
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Label()), nil
}
