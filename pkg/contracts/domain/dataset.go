package domain

import (
	"strconv"
	"strings"
	"time"
)

// ColumnType is the semantic type of a dataset column
type ColumnType string

const (
	ColumnTypeString ColumnType = "string"
	ColumnTypeNumber ColumnType = "number"
	ColumnTypeDate   ColumnType = "date"
)

// Column describes one column of a Dataset schema
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Value is a single cell. Valid is false for a missing value.
// Str always holds the source text; Num and Time are set once the
// column has been coerced to number or date.
type Value struct {
	Str   string    `json:"str"`
	Num   float64   `json:"num,omitempty"`
	Time  time.Time `json:"time,omitempty"`
	Valid bool      `json:"valid"`
}

// StringValue returns a valid string cell
func StringValue(s string) Value {
	return Value{Str: s, Valid: true}
}

// NumberValue returns a valid numeric cell
func NumberValue(f float64) Value {
	return Value{Str: strconv.FormatFloat(f, 'f', -1, 64), Num: f, Valid: true}
}

// DateValue returns a valid date cell
func DateValue(t time.Time) Value {
	return Value{Str: t.Format("2006-01-02"), Time: t, Valid: true}
}

// Missing returns a missing cell
func Missing() Value {
	return Value{}
}

// Key renders the value for equality checks under the given column type.
func (v Value) Key(t ColumnType) string {
	if !v.Valid {
		return "\x00"
	}
	switch t {
	case ColumnTypeNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ColumnTypeDate:
		return v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return v.Str
	}
}

// Record is one row of sales data, aligned with Dataset.Columns
type Record struct {
	Values []Value `json:"values"`
}

// Dataset is an ordered sequence of records sharing one schema
type Dataset struct {
	Source  string   `json:"source"`
	Columns []Column `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// ColumnIndex returns the position of the named column or -1.
// Matching is case-insensitive.
func (d *Dataset) ColumnIndex(name string) int {
	if d == nil || name == "" {
		return -1
	}
	for i, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the header in order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// RowKey builds an equality key across all columns of a record. Each cell
// key is length-prefixed so no cell content can forge a column boundary.
func (d *Dataset) RowKey(r Record) string {
	var b strings.Builder
	for i, v := range r.Values {
		t := ColumnTypeString
		if i < len(d.Columns) {
			t = d.Columns[i].Type
		}
		if !v.Valid {
			b.WriteByte('-')
			continue
		}
		k := v.Key(t)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// CleanReport summarises what the cleaner changed
type CleanReport struct {
	InputRows         int            `json:"input_rows"`
	OutputRows        int            `json:"output_rows"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	CoercionFailures  int            `json:"coercion_failures"`
	MissingDropped    int            `json:"missing_dropped"`
	CellsFilled       int            `json:"cells_filled"`
	FailuresByColumn  map[string]int `json:"failures_by_column,omitempty"`
}

// RowsDropped returns the total number of rows removed
func (r CleanReport) RowsDropped() int {
	return r.InputRows - r.OutputRows
}
