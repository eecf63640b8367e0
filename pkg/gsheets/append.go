package gsheets

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AppendTable appends rows to a sheet, reconciling headers first: columns
// already in the sheet keep their positions, new columns are added to the
// right, and each appended row is laid out in the reconciled order.
// Returns the number of data rows appended.
func AppendTable(ctx context.Context, c Client, spreadsheetID, sheetName string, columns []string, rows []map[string]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	headerRange := fmt.Sprintf("%s!1:1", sheetName)
	existing, err := c.GetValues(ctx, spreadsheetID, headerRange)
	if err != nil {
		return 0, eris.Wrap(err, "gsheets: read header")
	}

	var header []string
	if len(existing) > 0 {
		header = existing[0]
	}
	merged, changed := mergeHeader(header, columns)

	if changed {
		if err := c.UpdateValues(ctx, spreadsheetID, headerRange, [][]string{merged}); err != nil {
			return 0, eris.Wrap(err, "gsheets: update header")
		}
		zap.L().Info("gsheets: header updated",
			zap.String("sheet", sheetName),
			zap.Int("columns", len(merged)),
		)
	}

	values := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(merged))
		for j, col := range merged {
			cells[j] = row[col]
		}
		values[i] = cells
	}

	if err := c.AppendValues(ctx, spreadsheetID, fmt.Sprintf("%s!A1", sheetName), values); err != nil {
		return 0, eris.Wrap(err, "gsheets: append rows")
	}
	return len(rows), nil
}

// mergeHeader keeps the sheet's column order and adds unseen columns at
// the end. changed reports whether the header row must be rewritten.
func mergeHeader(existing, incoming []string) (merged []string, changed bool) {
	seen := make(map[string]struct{}, len(existing))
	for _, col := range existing {
		merged = append(merged, col)
		seen[col] = struct{}{}
	}
	for _, col := range incoming {
		if _, ok := seen[col]; !ok {
			merged = append(merged, col)
			seen[col] = struct{}{}
			changed = true
		}
	}
	return merged, changed
}
