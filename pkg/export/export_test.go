package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Activity records",
		Columns: []Column{{Name: "Date", Width: 30}, {Name: "Type", Width: 35}, {Name: "Title"}, {Name: "Description"}},
		Rows: [][]string{
			{"2024-01-05", "academic", "Math Olympiad", "Regional round, \"silver\""},
			{"2024-03-01", "co-curricular", "Choir"},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))
	assert.Equal(t, "Date,Type,Title,Description\n"+
		"2024-01-05,academic,Math Olympiad,\"Regional round, \"\"silver\"\"\"\n"+
		"2024-03-01,co-curricular,Choir,\n", buf.String())
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleTable(), time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestNoColumns(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteCSV(&buf, Table{}), ErrNoColumns)
	assert.ErrorIs(t, WritePDF(&buf, Table{}, time.Now()), ErrNoColumns)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, ".csv", f.Extension())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	assert.InDelta(t, 30, widths[0], 0.001)
	assert.InDelta(t, (pageWidth-65)/2, widths[2], 0.001)
}
