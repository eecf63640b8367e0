package loader

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/normalize"
)

// Workbook loads the enriched spreadsheet into records, one per data row.
// The first row is the header; later duplicate header names are dropped,
// keeping the first occurrence. Blank cells and NaN sentinels are omitted
// from records, fully-empty and exact-duplicate rows are skipped.
func Workbook(path string) ([]model.Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open workbook %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("loader: workbook %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("loader: workbook %s has no header row", path)
	}

	header, keep := dedupHeader(rowStrings(sheet.Rows[0]))

	var records []model.Record
	seen := make(map[string]struct{})
	duplicates := 0
	for _, row := range sheet.Rows[1:] {
		rec := rowRecord(header, keep, rowStrings(row))
		if len(rec) == 0 {
			continue
		}
		fp := rec.Fingerprint()
		if _, ok := seen[fp]; ok {
			duplicates++
			continue
		}
		seen[fp] = struct{}{}
		records = append(records, rec)
	}

	zap.L().Info("loader: workbook loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("duplicate_rows", duplicates),
	)
	return records, nil
}

// dedupHeader trims header cells and marks later duplicates for removal.
func dedupHeader(cells []string) ([]string, []bool) {
	header := make([]string, len(cells))
	keep := make([]bool, len(cells))
	used := make(map[string]struct{}, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		header[i] = name
		if name == "" {
			continue
		}
		if _, ok := used[name]; ok {
			zap.L().Warn("loader: duplicate column in workbook header", zap.String("column", name))
			continue
		}
		used[name] = struct{}{}
		keep[i] = true
	}
	return header, keep
}

// rowRecord maps one row's cells onto the kept header columns, omitting
// cells that normalize to empty. Returns an empty record for blank rows.
func rowRecord(header []string, keep []bool, cells []string) model.Record {
	rec := model.Record{}
	for i, col := range header {
		if !keep[i] || i >= len(cells) {
			continue
		}
		v := strings.TrimSpace(cells[i])
		if normalize.Generic(v) == "" {
			continue
		}
		rec[col] = v
	}
	return rec
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
