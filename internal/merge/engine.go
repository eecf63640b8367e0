package merge

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/identity"
	"github.com/fairscan/leadmerge-cli/internal/model"
)

// Source labels where a record came from. Diagnostic only: the label is
// never written into record fields.
type Source string

const (
	SourceScan  Source = "scan"
	SourceSheet Source = "sheet"
)

type tagged struct {
	rec    model.Record
	source Source
}

type group struct {
	key     model.IdentityKey
	members []tagged
}

// Engine partitions records from both sources into identity groups and
// folds each group into one record.
type Engine struct{}

// NewEngine creates a merge engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Merge buckets every record by identity key and folds each bucket in
// encounter order (scan records first, then sheet records, each in list
// order), so the earliest-encountered value always wins the bare field
// name. Nil or empty entries are skipped with a warning; the only error
// is an entirely empty input.
func (e *Engine) Merge(scans, sheets []model.Record) ([]model.Record, model.MergeStats, error) {
	stats := model.MergeStats{
		ScanRecords:  len(scans),
		SheetRecords: len(sheets),
	}

	groupIdx := make(map[string]int)
	var groups []group

	bucket := func(recs []model.Record, src Source) {
		for i, rec := range recs {
			if len(rec) == 0 {
				stats.Skipped++
				zap.L().Warn("merge: skipping empty record",
					zap.String("source", string(src)),
					zap.Int("index", i),
				)
				continue
			}
			key := identity.ExtractKey(rec)
			gk := key.String()
			idx, ok := groupIdx[gk]
			if !ok {
				idx = len(groups)
				groupIdx[gk] = idx
				groups = append(groups, group{key: key})
			}
			groups[idx].members = append(groups[idx].members, tagged{rec: rec, source: src})
		}
	}

	bucket(scans, SourceScan)
	bucket(sheets, SourceSheet)

	if len(groups) == 0 {
		return nil, stats, eris.New("merge: no input records")
	}
	stats.Groups = len(groups)

	out := make([]model.Record, 0, len(groups))
	for _, g := range groups {
		if len(g.members) == 1 {
			switch g.members[0].source {
			case SourceScan:
				stats.ScanOnly++
			case SourceSheet:
				stats.SheetOnly++
			}
			out = append(out, g.members[0].rec.Clone())
			continue
		}

		stats.Fused++
		merged := g.members[0].rec.Clone()
		for _, m := range g.members[1:] {
			merged = MergeTwo(merged, m.rec)
		}
		zap.L().Debug("merge: fused group",
			zap.String("key", g.key.String()),
			zap.Int("members", len(g.members)),
		)
		out = append(out, merged)
	}

	zap.L().Info("merge: grouping complete",
		zap.Int("groups", stats.Groups),
		zap.Int("scan_only", stats.ScanOnly),
		zap.Int("sheet_only", stats.SheetOnly),
		zap.Int("fused", stats.Fused),
		zap.Int("skipped", stats.Skipped),
	)

	return out, stats, nil
}
