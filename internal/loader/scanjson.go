// Package loader reads the two input shapes the merge engine consumes:
// the OCR+QR scan JSON and the enriched spreadsheet.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/model"
)

// scanFile mirrors one entry of the scan JSON: a scanned file with either
// a single field map (image) or an array of per-page results (PDF).
type scanFile struct {
	FileID   string          `json:"file_id"`
	FileName string          `json:"file_name"`
	Result   json.RawMessage `json:"result"`
}

type scanPage struct {
	Page   json.Number    `json:"page"`
	Result map[string]any `json:"result"`
}

// ScanJSON loads the OCR+QR merge output and flattens it into one record
// per page. List-valued fields explode positionally into field, field[2],
// field[3], …. Pages that carry nothing beyond provenance are dropped;
// malformed entries are skipped with a warning, never fatal.
func ScanJSON(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read scan json %s", path)
	}

	var files []scanFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, eris.Wrapf(err, "loader: parse scan json %s", path)
	}

	var records []model.Record
	for i, f := range files {
		if len(f.Result) == 0 {
			zap.L().Warn("loader: scan entry has no result", zap.Int("index", i), zap.String("file", f.FileName))
			continue
		}

		// PDF case: array of per-page results.
		var pages []scanPage
		if err := json.Unmarshal(f.Result, &pages); err == nil {
			for _, p := range pages {
				if rec := pageRecord(f, p.Page.String(), p.Result); rec != nil {
					records = append(records, rec)
				}
			}
			continue
		}

		// Image case: one field map for the whole file.
		var fields map[string]any
		if err := json.Unmarshal(f.Result, &fields); err != nil {
			zap.L().Warn("loader: unrecognized scan result shape",
				zap.Int("index", i),
				zap.String("file", f.FileName),
			)
			continue
		}
		if rec := pageRecord(f, "1", fields); rec != nil {
			records = append(records, rec)
		}
	}

	zap.L().Info("loader: scan json loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// pageRecord builds one record from a page's field map, returning nil
// when the page has no usable fields.
func pageRecord(f scanFile, page string, fields map[string]any) model.Record {
	rec := model.Record{
		model.FieldFileID:   f.FileID,
		model.FieldFileName: f.FileName,
		model.FieldPage:     page,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := fields[key].(type) {
		case nil:
		case []any:
			n := 1
			for _, item := range v {
				s := cellString(item)
				if s == "" {
					continue
				}
				rec[model.VariantName(key, n)] = s
				n++
			}
		default:
			if s := cellString(v); s != "" {
				rec[key] = s
			}
		}
	}

	if len(rec) <= 3 {
		return nil
	}
	return rec
}

// cellString renders a JSON value for a record cell. Numbers keep their
// JSON text form; everything else is trimmed.
func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strings.TrimSpace(trimFloat(s))
	case bool:
		return fmt.Sprintf("%v", s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}

// trimFloat renders integral floats without the trailing ".0" that JSON
// decoding would otherwise introduce into phone-like cells.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}
