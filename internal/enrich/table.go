// Package enrich holds the reference-layer preparation steps: renaming and
// dropping fields, merging statistics tables, grouped averages, and ids with
// metric areas.
package enrich

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Table is a header row plus data rows read from a CSV or XLSX file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadTable reads a .csv or .xlsx file. For CSV, charset names a text
// encoding (e.g. "windows-1252"); empty means UTF-8. XLSX uses the first
// sheet.
func ReadTable(path, charset string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	default:
		return readCSV(path, charset)
	}
}

func readCSV(path, charset string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: unsupported charset %q", charset)
		}
		r = enc.NewDecoder().Reader(f)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: parse %s", path)
	}
	return newTable(records), nil
}

func readXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return &Table{}, nil
	}
	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		records = append(records, cells)
	}
	return newTable(records), nil
}

func newTable(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}
	t.Header = trimAll(records[0])
	if len(t.Header) > 0 {
		t.Header[0] = strings.TrimPrefix(t.Header[0], "\ufeff")
	}
	for _, rec := range records[1:] {
		t.Rows = append(t.Rows, trimAll(rec))
	}
	return t
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// WriteCSV writes header and rows to path.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "enrich: create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "enrich: write %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "enrich: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "enrich: close %s", path)
	}
	return nil
}
