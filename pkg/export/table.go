// Package export renders tables of pre-formatted cells as CSV or PDF.
package export

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoColumns is returned for tables without columns.
var ErrNoColumns = errors.New("export: table has no columns")

// Format is an export file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf" in any case; empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string { return "." + string(f) }

// Column is a table heading. Width is only used by PDF output, in
// millimetres; zero shares the remaining page width.
type Column struct {
	Name  string
	Width float64
}

// Table is the content of one export.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

func (t Table) names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// cell returns row[i], or "" for short rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
