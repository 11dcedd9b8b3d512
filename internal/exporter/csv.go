package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"salescli/pkg/contracts/domain"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file, replacing any existing file
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	w.logger.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	stream, err := w.createStream(filePath, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}

	for i, record := range options.Records {
		if err := stream.WriteRecord(record); err != nil {
			stream.file.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return stream.Close()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer with a BOM and header row
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	w.logger.Debug("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.Int("header_count", len(headers)))
	return w.createStream(filePath, headers, true)
}

func (w *CSVWriter) createStream(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// SummaryHeaders are the columns of the long-format summary CSV
var SummaryHeaders = []string{"section", "key", "metric", "value"}

// SummaryRows flattens the metric set into (section, key, metric, value)
// rows: overall scalars, cleaning counts, one block per period and per
// category, then the histogram.
func SummaryRows(m *domain.MetricSet, clean *domain.CleanReport) [][]string {
	var rows [][]string
	add := func(section, key, metric, value string) {
		rows = append(rows, []string{section, key, metric, value})
	}

	s := m.Summary
	add("summary", "", domain.MetricTotalSales, formatFloat(s.TotalSales))
	add("summary", "", domain.MetricAvgOrderValue, formatFloat(s.AverageOrderValue))
	add("summary", "", domain.MetricTotalOrders, formatInt(int64(s.TotalOrders)))
	add("summary", "", "total_rows", formatInt(int64(s.TotalRows)))
	add("summary", "", domain.MetricTotalQuantity, formatFloat(s.TotalQuantity))
	add("summary", "", domain.MetricUniqueCustomers, formatInt(int64(s.UniqueCustomers)))
	add("summary", "", domain.MetricUniqueProducts, formatInt(int64(s.UniqueProducts)))
	add("summary", "", "date_start", formatDate(s.DateRange.Start))
	add("summary", "", "date_end", formatDate(s.DateRange.End))
	values := m.Values()
	for _, name := range []string{domain.MetricLatestGrowth, domain.MetricMoMGrowth} {
		if v, ok := values[name]; ok {
			add("summary", "", name, formatRate(v))
		}
	}

	if clean != nil {
		add("cleaning", "", "input_rows", formatInt(int64(clean.InputRows)))
		add("cleaning", "", "output_rows", formatInt(int64(clean.OutputRows)))
		add("cleaning", "", "duplicates_removed", formatInt(int64(clean.DuplicatesRemoved)))
		add("cleaning", "", "coercion_failures", formatInt(int64(clean.CoercionFailures)))
		add("cleaning", "", "missing_dropped", formatInt(int64(clean.MissingDropped)))
		add("cleaning", "", "cells_filled", formatInt(int64(clean.CellsFilled)))
	}

	for _, p := range m.Periods {
		key := p.Period.Label()
		add("period", key, "total", formatFloat(p.Total))
		add("period", key, "average", formatFloat(p.Average))
		add("period", key, "orders", formatInt(int64(p.Orders)))
		add("period", key, "quantity", formatFloat(p.Quantity))
		add("period", key, "unique_customers", formatInt(int64(p.UniqueCustomers)))
		add("period", key, "growth", formatGrowth(p.Growth))
	}

	for _, c := range m.Categories {
		add("category", c.Category, "total", formatFloat(c.Total))
		add("category", c.Category, "average", formatFloat(c.Average))
		add("category", c.Category, "quantity", formatFloat(c.Quantity))
		add("category", c.Category, "orders", formatInt(int64(c.Orders)))
	}

	for _, b := range m.Distribution {
		key := formatFloat(b.Lower) + "-" + formatFloat(b.Upper)
		add("distribution", key, "count", formatInt(int64(b.Count)))
	}
	return rows
}

// writeDatasetCSV streams the cleaned dataset with its typed values
func writeDatasetCSV(ctx context.Context, w *CSVWriter, path string, ds *domain.Dataset) error {
	stream, err := w.CreateStreamWriter(path, ds.ColumnNames())
	if err != nil {
		return err
	}
	for i, rec := range ds.Records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				stream.Close()
				return err
			}
		}
		row := make([]string, len(rec.Values))
		for j, v := range rec.Values {
			row[j] = formatValue(v, ds.Columns[j].Type)
		}
		if err := stream.WriteRecord(row); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return stream.Close()
}
