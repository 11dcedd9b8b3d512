package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer := NewCSVWriter(discardLogger())
	dir := t.TempDir()

	tests := []struct {
		name     string
		options  WriteOptions
		wantBOM  bool
		wantRows int
	}{
		{
			name: "headers and records",
			options: WriteOptions{
				Headers: []string{"a", "b"},
				Records: [][]string{{"1", "2"}, {"3", "4"}},
			},
			wantRows: 3,
		},
		{
			name: "with BOM",
			options: WriteOptions{
				Headers:   []string{"a"},
				Records:   [][]string{{"x,y"}},
				BOMPrefix: true,
			},
			wantBOM:  true,
			wantRows: 2,
		},
		{
			name:     "empty records",
			options:  WriteOptions{Headers: []string{"a"}},
			wantRows: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", tt.name+".csv")
			require.NoError(t, writer.WriteCSV(path, tt.options))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBOM, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
			assert.Len(t, readCSV(t, path), tt.wantRows)
		})
	}
}

func TestCSVWriter_WriteCSVReplacesExisting(t *testing.T) {
	writer := NewCSVWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, writer.WriteCSV(path, WriteOptions{Headers: []string{"old"}, Records: [][]string{{"1"}, {"2"}}}))
	require.NoError(t, writer.WriteCSV(path, WriteOptions{Headers: []string{"new"}}))

	assert.Equal(t, [][]string{{"new"}}, readCSV(t, path))
}

func TestStreamWriter(t *testing.T) {
	writer := NewCSVWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "stream.csv")

	stream, err := writer.CreateStreamWriter(path, []string{"id", "value"})
	require.NoError(t, err)
	for _, rec := range [][]string{{"1", "a"}, {"2", "b"}} {
		require.NoError(t, stream.WriteRecord(rec))
	}
	require.NoError(t, stream.Close())

	assert.Equal(t, [][]string{{"id", "value"}, {"1", "a"}, {"2", "b"}}, readCSV(t, path))
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(sampleMetrics(t), sampleCleanReport())

	find := func(section, key, metric string) (string, bool) {
		for _, r := range rows {
			if r[0] == section && r[1] == key && r[2] == metric {
				return r[3], true
			}
		}
		return "", false
	}

	tests := []struct {
		section, key, metric, want string
	}{
		{"summary", "", "total_sales", "30.00"},
		{"summary", "", "avg_order_value", "15.00"},
		{"summary", "", "total_orders", "2"},
		{"summary", "", "date_start", "2024-01-05"},
		{"summary", "", "latest_growth", "1.000000"},
		{"summary", "", "mom_growth", "1.000000"},
		{"cleaning", "", "duplicates_removed", "1"},
		{"period", "2024-01", "total", "10.00"},
		{"period", "2024-01", "growth", ""},
		{"period", "2024-02", "growth", "1.000000"},
		{"category", "Books", "total", "20.00"},
		{"distribution", "10.00-15.00", "count", "1"},
	}
	for _, tt := range tests {
		got, ok := find(tt.section, tt.key, tt.metric)
		require.True(t, ok, "missing row %s/%s/%s", tt.section, tt.key, tt.metric)
		assert.Equal(t, tt.want, got, "%s/%s/%s", tt.section, tt.key, tt.metric)
	}

	for _, r := range rows {
		assert.Len(t, r, len(SummaryHeaders))
	}
}

func TestSummaryRows_UndefinedGrowthOmitted(t *testing.T) {
	m := sampleMetrics(t)
	m.Growth = m.Growth[:1]

	for _, r := range SummaryRows(m, nil) {
		assert.NotEqual(t, "latest_growth", r[2])
		assert.NotEqual(t, "cleaning", r[0])
	}
}

func TestWriteDatasetCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.csv")
	require.NoError(t, writeDatasetCSV(context.Background(), NewCSVWriter(discardLogger()), path, sampleDataset()))

	assert.Equal(t, [][]string{
		{"order_id", "order_date", "category", "total_amount"},
		{"A-1", "2024-01-05", "Games", "10"},
		{"A-2", "2024-02-09", "Books", "20"},
	}, readCSV(t, path))
}
