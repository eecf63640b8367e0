package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/table"
)

func TestWriteXLSX_RoundTrip(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"Website": "a.example", "Phone1": "0912"},
		{"Website": "b.example", "Email": "x@b.example"},
	})
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path, tbl))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3, "header plus two data rows")

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, c := range sheet.Rows[0].Cells {
		header[i] = c.String()
	}
	assert.Equal(t, tbl.Columns, header)

	// empty cells are written as empty strings, keeping the grid square
	assert.Len(t, sheet.Rows[1].Cells, len(tbl.Columns))
}

func TestWriteXLSX_NoTempFileLeftBehind(t *testing.T) {
	tbl := table.Materialize([]model.Record{{"Website": "a.example"}})
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xlsx")

	require.NoError(t, WriteXLSX(path, tbl))

	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, entries)
}
