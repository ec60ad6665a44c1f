// Package sheet reads the first (or a named) worksheet of an .xlsx workbook, or
// a .csv file, into rows keyed by the header line.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Row maps a header to the cell beneath it.
type Row map[string]string

// First returns the first non-blank value among keys, trimmed.
func (r Row) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

type Table struct {
	Sheet   string
	Headers []string
	Rows    []Row
}

// ReadFile dispatches on the file extension.
func ReadFile(path, sheetName string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, sheetName)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadXLSX reads sheetName, or the first sheet when it is empty.
func ReadXLSX(r io.Reader, sheetName string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if sheetName == "" {
		sheetName = sheets[0]
	} else if !slices.Contains(sheets, sheetName) {
		return nil, fmt.Errorf("sheet %q not found (have %s)", sheetName, strings.Join(sheets, ", "))
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	t := build(records)
	t.Sheet = sheetName
	return t, nil
}

func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return build(records), nil
}

func build(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}

	t.Headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		t.Headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for _, record := range records[1:] {
		row := make(Row, len(t.Headers))
		blank := true
		for i, h := range t.Headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = record[i]
			if strings.TrimSpace(record[i]) != "" {
				blank = false
			}
		}
		if !blank {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}
