// Package export delivers the final merged table: local XLSX plus the
// optional Google Sheets, FTP, Salesforce, and Notion sinks.
package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/table"
)

// WriteXLSX writes the table as a single-sheet workbook. The file is
// written to a temp path and renamed so readers never see a partial file.
func WriteXLSX(path string, t *table.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, col := range t.Columns {
		headerRow.AddCell().SetString(col)
	}
	for i := range t.Rows {
		row := sheet.AddRow()
		for _, col := range t.Columns {
			row.AddCell().SetString(t.Cell(i, col))
		}
	}

	tmp := path + ".tmp"
	if err := f.Save(tmp); err != nil {
		return eris.Wrapf(err, "export: save %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return eris.Wrapf(err, "export: rename to %s", path)
	}

	zap.L().Info("export: workbook written",
		zap.String("path", filepath.Clean(path)),
		zap.Int("rows", len(t.Rows)),
		zap.Int("columns", len(t.Columns)),
	)
	return nil
}
