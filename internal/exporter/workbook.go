package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"salescli/pkg/contracts/domain"
)

// Workbook sheet names
const (
	SheetSummary      = "Summary"
	SheetTrends       = "Trends"
	SheetCategories   = "Categories"
	SheetDistribution = "Distribution"
	SheetSample       = "Sample Data"
)

// WorkbookOptions controls the XLSX export
type WorkbookOptions struct {
	TopCategories int
	SampleRows    int
}

// WriteWorkbook builds the XLSX report with native Excel charts and saves it to path
func WriteWorkbook(path string, in ReportInput, opts WorkbookOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F46E5"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, sheet := range []string{SheetTrends, SheetCategories, SheetDistribution} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	steps := []func(*excelize.File, ReportInput, WorkbookOptions, int) error{
		writeSummarySheet,
		writeTrendsSheet,
		writeCategoriesSheet,
		writeDistributionSheet,
		writeSampleSheet,
	}
	for _, step := range steps {
		if err := step(f, in, opts, header); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeTable writes a header row plus data rows starting at A1
func writeTable(f *excelize.File, sheet string, headers []string, rows [][]interface{}, style int) error {
	head := make([]interface{}, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func growthCell(rate *float64) interface{} {
	if rate == nil {
		return nil
	}
	return *rate
}

func writeSummarySheet(f *excelize.File, in ReportInput, _ WorkbookOptions, style int) error {
	m := in.Metrics
	s := m.Summary
	rows := [][]interface{}{
		{"Total Sales", s.TotalSales},
		{"Average Order Value", s.AverageOrderValue},
		{"Total Orders", s.TotalOrders},
		{"Total Rows", s.TotalRows},
		{"Total Quantity", s.TotalQuantity},
		{"Unique Customers", s.UniqueCustomers},
		{"Unique Products", s.UniqueProducts},
		{"First Order Date", formatDate(s.DateRange.Start)},
		{"Last Order Date", formatDate(s.DateRange.End)},
		{"Granularity", string(m.Granularity)},
		{"Latest Growth", growthCell(m.LatestGrowth())},
	}
	if c := in.Clean; c != nil {
		rows = append(rows,
			[]interface{}{"Input Rows", c.InputRows},
			[]interface{}{"Output Rows", c.OutputRows},
			[]interface{}{"Duplicates Removed", c.DuplicatesRemoved},
			[]interface{}{"Coercion Failures", c.CoercionFailures},
			[]interface{}{"Rows Dropped For Missing Values", c.MissingDropped},
			[]interface{}{"Cells Filled", c.CellsFilled},
		)
	}
	if err := writeTable(f, SheetSummary, []string{"Metric", "Value"}, rows, style); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 34)
}

func writeTrendsSheet(f *excelize.File, in ReportInput, _ WorkbookOptions, style int) error {
	periods := in.Metrics.Periods
	rows := make([][]interface{}, len(periods))
	for i, p := range periods {
		rows[i] = []interface{}{p.Period.Label(), p.Total, p.Average, p.Orders, p.Quantity, p.UniqueCustomers, growthCell(p.Growth)}
	}
	headers := []string{"Period", "Total Sales", "Average", "Orders", "Quantity", "Unique Customers", "Growth"}
	if err := writeTable(f, SheetTrends, headers, rows, style); err != nil {
		return err
	}
	if len(periods) == 0 {
		return nil
	}

	last := len(periods) + 1
	return f.AddChart(SheetTrends, "I2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$1", SheetTrends),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", SheetTrends, last),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", SheetTrends, last),
		}},
		Title:  []excelize.RichTextRun{{Text: "Sales Trend"}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

func writeCategoriesSheet(f *excelize.File, in ReportInput, opts WorkbookOptions, style int) error {
	categories := in.Metrics.Categories
	rows := make([][]interface{}, len(categories))
	for i, c := range categories {
		rows[i] = []interface{}{c.Category, c.Total, c.Average, c.Quantity, c.Orders}
	}
	headers := []string{"Category", "Total Sales", "Average", "Quantity", "Orders"}
	if err := writeTable(f, SheetCategories, headers, rows, style); err != nil {
		return err
	}
	if len(categories) == 0 {
		return nil
	}

	top := len(categories)
	if opts.TopCategories > 0 && top > opts.TopCategories {
		top = opts.TopCategories
	}
	return f.AddChart(SheetCategories, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$1", SheetCategories),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", SheetCategories, top+1),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", SheetCategories, top+1),
		}},
		Title:  []excelize.RichTextRun{{Text: fmt.Sprintf("Top %d Categories", top)}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

func writeDistributionSheet(f *excelize.File, in ReportInput, _ WorkbookOptions, style int) error {
	bins := in.Metrics.Distribution
	rows := make([][]interface{}, len(bins))
	for i, b := range bins {
		rows[i] = []interface{}{b.Lower, b.Upper, b.Count}
	}
	return writeTable(f, SheetDistribution, []string{"Lower", "Upper", "Orders"}, rows, style)
}

// writeSampleSheet copies the first SampleRows cleaned records
func writeSampleSheet(f *excelize.File, in ReportInput, opts WorkbookOptions, style int) error {
	ds := in.Dataset
	if ds == nil || opts.SampleRows <= 0 || ds.Len() == 0 {
		return nil
	}
	if _, err := f.NewSheet(SheetSample); err != nil {
		return err
	}

	n := ds.Len()
	if n > opts.SampleRows {
		n = opts.SampleRows
	}
	rows := make([][]interface{}, n)
	for i, rec := range ds.Records[:n] {
		row := make([]interface{}, len(rec.Values))
		for j, v := range rec.Values {
			row[j] = sampleCell(v, ds.Columns[j].Type)
		}
		rows[i] = row
	}
	return writeTable(f, SheetSample, ds.ColumnNames(), rows, style)
}

func sampleCell(v domain.Value, t domain.ColumnType) interface{} {
	if !v.Valid {
		return nil
	}
	if t == domain.ColumnTypeNumber {
		return v.Num
	}
	return formatValue(v, t)
}
