package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

// Input formats understood by the loader
const (
	FormatAuto = "auto"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffDelimiters are tried, in order of preference, on .txt headers
var sniffDelimiters = []rune{',', ';', '\t', '|'}

// Loader reads a delimited or spreadsheet file into a string-typed Dataset
type Loader struct {
	input      config.InputConfig
	nullTokens map[string]bool
	logger     *slog.Logger
}

// NewLoader creates a loader. Cells matching one of nullTokens
// (case-insensitive, after trimming) load as missing.
func NewLoader(input config.InputConfig, nullTokens []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	tokens := make(map[string]bool, len(nullTokens))
	for _, t := range nullTokens {
		tokens[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Loader{
		input:      input,
		nullTokens: tokens,
		logger:     logger.With(slog.String("component", "loader")),
	}
}

// Load reads path into a Dataset. Every column is string typed; the
// cleaner is responsible for coercion.
func (l *Loader) Load(ctx context.Context, path string) (*domain.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewFileNotFoundError(path, err)
		}
		return nil, apperrors.NewFileFormatError(path, "cannot stat input", err)
	}
	if info.IsDir() {
		return nil, apperrors.NewFileFormatError(path, "input is a directory", nil)
	}

	format, delimiter, err := l.resolveFormat(path)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Loading input file",
		slog.String("file", path),
		slog.String("format", format),
		slog.Int64("bytes", info.Size()))

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = l.readSpreadsheet(path)
	default:
		rows, err = l.readDelimited(ctx, path, delimiter)
	}
	if err != nil {
		return nil, err
	}

	ds, err := l.buildDataset(path, rows)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Input file loaded",
		slog.String("file", path),
		slog.Int("columns", len(ds.Columns)),
		slog.Int("rows", ds.Len()))
	return ds, nil
}

// resolveFormat maps the configured format, or the file extension when
// the format is auto, to a reader and a delimiter.
func (l *Loader) resolveFormat(path string) (string, rune, error) {
	format := strings.ToLower(l.input.Format)
	if format == "" {
		format = FormatAuto
	}

	var delimiter rune
	if l.input.Delimiter != "" {
		delimiter = []rune(l.input.Delimiter)[0]
	}

	if format == FormatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = FormatCSV
		case ".tsv", ".tab":
			format = FormatTSV
		case ".txt":
			format = FormatCSV
			if delimiter == 0 {
				sniffed, err := sniffDelimiter(path)
				if err != nil {
					return "", 0, apperrors.NewFileFormatError(path, "cannot read header", err)
				}
				delimiter = sniffed
			}
		case ".xlsx", ".xlsm":
			format = FormatXLSX
		default:
			return "", 0, apperrors.NewFileFormatError(path,
				fmt.Sprintf("unsupported file extension %q", filepath.Ext(path)), nil)
		}
	}

	switch format {
	case FormatCSV:
		if delimiter == 0 {
			delimiter = ','
		}
	case FormatTSV:
		if delimiter == 0 {
			delimiter = '\t'
		}
	case FormatXLSX:
	default:
		return "", 0, apperrors.NewFileFormatError(path, fmt.Sprintf("unsupported format %q", format), nil)
	}
	return format, delimiter, nil
}

// sniffDelimiter picks the candidate occurring most often in the first line
func sniffDelimiter(path string) (rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}

	best, bestCount := ',', 0
	for _, d := range sniffDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best, nil
}

func (l *Loader) readDelimited(ctx context.Context, path string, delimiter rune) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewFileFormatError(path, "cannot read input", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	var rows [][]string
	for {
		if len(rows)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, apperrors.NewFileFormatError(path,
					fmt.Sprintf("malformed row at line %d", parseErr.Line), err).
					WithContext("line", parseErr.Line)
			}
			return nil, apperrors.NewFileFormatError(path, "cannot parse delimited input", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func (l *Loader) readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewFileFormatError(path, "cannot open spreadsheet", err)
	}
	defer f.Close()

	sheet := l.input.Sheet
	sheets := f.GetSheetList()
	if sheet == "" {
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, apperrors.NewFileFormatError(path, fmt.Sprintf("sheet %q not found", sheet), nil).
			WithContext("sheets", sheets)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewFileFormatError(path, fmt.Sprintf("cannot read sheet %q", sheet), err)
	}
	if err := isoDateCells(f, sheet, rows); err != nil {
		return nil, apperrors.NewFileFormatError(path, fmt.Sprintf("cannot read dates in sheet %q", sheet), err)
	}

	// excelize returns interior blank rows as empty slices
	out := rows[:0]
	for _, row := range rows {
		if !blankRow(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// buildDataset turns raw rows (header first) into a Dataset
func (l *Loader) buildDataset(path string, rows [][]string) (*domain.Dataset, error) {
	ds := &domain.Dataset{Source: path}
	if len(rows) == 0 {
		return ds, nil
	}

	header := rows[0]
	seen := make(map[string]bool, len(header))
	ds.Columns = make([]domain.Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, apperrors.NewFileFormatError(path, fmt.Sprintf("duplicate header %q", name), nil).
				WithContext("column", name)
		}
		seen[key] = true
		ds.Columns[i] = domain.Column{Name: name, Type: domain.ColumnTypeString}
	}

	ds.Records = make([]domain.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) > len(header) && !blankRow(row[len(header):]) {
			line := n + 2
			return nil, apperrors.NewFileFormatError(path,
				fmt.Sprintf("row at line %d has %d fields, header has %d", line, len(row), len(header)), nil).
				WithContext("line", line)
		}
		values := make([]domain.Value, len(header))
		for i := range header {
			if i < len(row) {
				values[i] = l.cell(row[i])
			}
		}
		ds.Records = append(ds.Records, domain.Record{Values: values})
	}
	return ds, nil
}

func (l *Loader) cell(raw string) domain.Value {
	text := strings.TrimSpace(raw)
	if text == "" || l.nullTokens[strings.ToLower(text)] {
		return domain.Missing()
	}
	return domain.StringValue(text)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// isoDateCells rewrites date-formatted cells in place. GetRows renders them
// with the workbook's display format (e.g. mm-dd-yy), which is locale
// dependent, so the serial value is converted instead.
func isoDateCells(f *excelize.File, sheet string, rows [][]string) error {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return err
	}
	date1904 := props.Date1904 != nil && *props.Date1904

	dated := make(map[int]bool)
	for r, row := range rows {
		for c, text := range row {
			if strings.TrimSpace(text) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			styleID, err := f.GetCellStyle(sheet, axis)
			if err != nil {
				return err
			}
			isDate, seen := dated[styleID]
			if !seen {
				isDate = dateStyle(f, styleID)
				dated[styleID] = isDate
			}
			if !isDate {
				continue
			}
			raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
			if err != nil {
				return err
			}
			serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				// text typed into a date-styled cell
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			row[c] = formatSheetDate(t.Round(time.Second))
		}
	}
	return nil
}

func formatSheetDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// dateStyle reports whether a cell style carries a date number format.
// Time-only formats are not dates.
func dateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return dateFormatCode(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 17, n == 22, n >= 27 && n <= 36, n >= 50 && n <= 58:
		return true
	}
	return false
}

// dateFormatCode looks for day or year tokens outside literals and
// bracketed sections such as [Red] or [$-409].
func dateFormatCode(code string) bool {
	quoted, bracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case quoted:
			quoted = ch != '"'
		case bracket:
			bracket = ch != ']'
		case ch == '"':
			quoted = true
		case ch == '[':
			bracket = true
		case ch == '\\':
			i++
		case ch == 'd', ch == 'D', ch == 'y', ch == 'Y':
			return true
		}
	}
	return false
}
