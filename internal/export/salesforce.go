package export

import (
	"context"

	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/table"
	sfpkg "github.com/fairscan/leadmerge-cli/pkg/salesforce"
)

// leadFieldMap maps output columns onto Salesforce Lead fields.
var leadFieldMap = map[string]string{
	"CompanyNameEN": "Company",
	"ContactName":   "LastName",
	"Website":       "Website",
	"Phone1":        "Phone",
	"Fax":           "Fax",
	"Email":         "Email",
	"Industry":      "Industry",
	"City":          "City",
	"Country":       "Country",
	"Description":   "Description",
}

// SalesforceSink pushes merged rows as Lead records.
type SalesforceSink struct {
	Client sfpkg.Client
}

// Push inserts one Lead per table row and returns the number of
// successful inserts. Rows without a company or contact value are
// skipped: Salesforce rejects Leads with neither.
func (s *SalesforceSink) Push(ctx context.Context, t *table.Table) (int, error) {
	var records []map[string]any
	for i := range t.Rows {
		rec := leadRecord(t, i)
		if rec != nil {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		zap.L().Warn("export: no salesforce-eligible rows")
		return 0, nil
	}

	results, err := s.Client.InsertCollection(ctx, "Lead", records)
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			zap.L().Warn("export: lead insert failed", zap.Strings("errors", r.Errors))
		}
	}
	zap.L().Info("export: salesforce push complete",
		zap.Int("inserted", ok),
		zap.Int("failed", len(results)-ok),
	)
	return ok, nil
}

func leadRecord(t *table.Table, row int) map[string]any {
	rec := make(map[string]any)
	for col, sfField := range leadFieldMap {
		if v := t.Cell(row, col); v != "" {
			rec[sfField] = v
		}
	}
	if rec["Company"] == nil && rec["LastName"] == nil {
		return nil
	}
	// Lead requires LastName; fall back to the company name.
	if rec["LastName"] == nil {
		rec["LastName"] = rec["Company"]
	}
	if rec["Company"] == nil {
		rec["Company"] = rec["LastName"]
	}
	return rec
}
