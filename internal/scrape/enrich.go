package scrape

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fairscan/leadmerge-cli/internal/crawl"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/normalize"
)

// listishFields are appended with a comma when a scraped value conflicts
// with an existing cell; everything else uses a pipe so the two readings
// stay visually distinct.
var listishFields = []string{"Phone", "Mobile", "Fax", "Email", "Products", "Brands", "Markets"}

// FindURLColumn returns the first column whose header names a website
// address.
func FindURLColumn(columns []string) (string, error) {
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "url") || strings.Contains(lower, "website") || strings.Contains(lower, "site") {
			return col, nil
		}
	}
	return "", eris.New("scrape: no url column in sheet header")
}

// RowURLs collects the distinct normalized root URLs found in urlCol,
// in row order.
func RowURLs(rows []model.Record, urlCol string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, row := range rows {
		root := rowRoot(row, urlCol)
		if root == "" {
			continue
		}
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		urls = append(urls, root)
	}
	return urls
}

// Enrich folds scraped records back into the source rows, keyed on the
// row's root URL. Empty cells are filled; conflicting values are kept
// alongside the original. Rows without a usable URL pass through
// untouched. Returns the enriched rows and the number of rows touched.
func Enrich(rows []model.Record, urlCol string, scraped []model.Record) ([]model.Record, int) {
	byRoot := make(map[string]model.Record, len(scraped))
	for _, rec := range scraped {
		if root := rowRoot(rec, "Website"); root != "" {
			byRoot[root] = rec
		}
	}

	out := make([]model.Record, len(rows))
	touched := 0
	for i, row := range rows {
		out[i] = row.Clone()
		rec, ok := byRoot[rowRoot(row, urlCol)]
		if !ok || rec["status"] == "failed" {
			continue
		}
		if enrichRow(out[i], rec) {
			touched++
		}
	}
	return out, touched
}

func enrichRow(row, rec model.Record) bool {
	changed := false
	for field, v := range rec {
		if v == "" || field == "status" || field == "error" || field == "Website" {
			continue
		}
		cur := row[field]
		switch {
		case cur == "":
			row[field] = v
			changed = true
		case normalize.ValuesEqual(cur, v):
			// already there
		default:
			row[field] = cur + separator(field) + v
			changed = true
		}
	}
	return changed
}

func separator(field string) string {
	for _, l := range listishFields {
		if strings.Contains(field, l) {
			return ", "
		}
	}
	return " | "
}

func rowRoot(row model.Record, col string) string {
	raw := strings.TrimSpace(row[col])
	if raw == "" || normalize.Generic(raw) == "" {
		return ""
	}
	return crawl.NormalizeRoot(raw)
}
