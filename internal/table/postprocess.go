package table

import (
	"sort"

	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/normalize"
	"github.com/fairscan/leadmerge-cli/internal/registry"
)

// PostProcess runs the full column cleanup pipeline on a materialized
// table: metadata strip, empty-column drop, synonym collapse, sparse
// variant pruning, script-based field splitting, canonical ordering.
// Rows are never dropped.
func PostProcess(t *Table, rules *registry.Rules) *Table {
	out := DropColumns(t, rules.MetadataColumns)
	out = DropEmptyColumns(out)
	out = CollapseSynonyms(out, rules.Synonyms)
	out = PruneSparseVariants(out, rules.SparseVariantThreshold)
	out = SplitScriptFields(out, rules.Splits)
	out = OrderColumns(out, rules.PriorityColumns)

	zap.L().Info("table: post-processing complete",
		zap.Int("rows", len(out.Rows)),
		zap.Int("columns", len(out.Columns)),
	)
	return out
}

// DropColumns removes the named columns wherever present.
func DropColumns(t *Table, names []string) *Table {
	out := t.clone()
	for _, name := range names {
		out.dropColumn(name)
	}
	return out
}

// DropEmptyColumns removes columns that are empty in every row.
func DropEmptyColumns(t *Table) *Table {
	out := t.clone()
	var dropped []string
	for _, col := range append([]string(nil), out.Columns...) {
		if out.emptyFraction(col) == 1 {
			out.dropColumn(col)
			dropped = append(dropped, col)
		}
	}
	if len(dropped) > 0 {
		zap.L().Debug("table: dropped empty columns", zap.Strings("columns", dropped))
	}
	return out
}

// CollapseSynonyms applies each synonym rule in order: the old column
// fills the new column's empty cells, then the old column is dropped.
// Sequencing matters; later rules may see columns earlier rules created.
func CollapseSynonyms(t *Table, synonyms []registry.Synonym) *Table {
	out := t.clone()
	for _, syn := range synonyms {
		if !out.HasColumn(syn.Old) {
			continue
		}
		if syn.IfPresent && !out.HasColumn(syn.New) {
			continue
		}
		out.ensureColumn(syn.New)
		for _, row := range out.Rows {
			if row[syn.New] == "" && row[syn.Old] != "" {
				row[syn.New] = row[syn.Old]
			}
		}
		out.dropColumn(syn.Old)
	}
	return out
}

// PruneSparseVariants drops [N] variant columns that are empty in more
// than threshold of rows. A variant that sparse is extraction noise, not
// a meaningful conflict signal.
func PruneSparseVariants(t *Table, threshold float64) *Table {
	out := t.clone()
	for _, col := range append([]string(nil), out.Columns...) {
		if !model.IsVariant(col) {
			continue
		}
		if out.emptyFraction(col) > threshold {
			out.dropColumn(col)
		}
	}
	return out
}

// SplitScriptFields routes each ambiguous source column's cells into the
// Persian-script or Latin-script target, filling only empty targets, then
// drops the source column.
func SplitScriptFields(t *Table, splits []registry.ScriptSplit) *Table {
	out := t.clone()
	for _, sp := range splits {
		if !out.HasColumn(sp.Source) {
			continue
		}
		out.ensureColumn(sp.Latin)
		out.ensureColumn(sp.Persian)
		for _, row := range out.Rows {
			v := row[sp.Source]
			if v == "" {
				continue
			}
			target := sp.Latin
			if normalize.HasPersian(v) {
				target = sp.Persian
			}
			if row[target] == "" {
				row[target] = v
			}
		}
		out.dropColumn(sp.Source)
	}
	return out
}

// OrderColumns puts the priority columns first, in the given order,
// skipping absences; every remaining column follows alphabetically.
func OrderColumns(t *Table, priority []string) *Table {
	out := t.clone()

	inPriority := make(map[string]struct{}, len(priority))
	var ordered []string
	for _, col := range priority {
		if out.HasColumn(col) {
			ordered = append(ordered, col)
			inPriority[col] = struct{}{}
		}
	}

	var rest []string
	for _, col := range out.Columns {
		if _, ok := inPriority[col]; !ok {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)

	out.Columns = append(ordered, rest...)
	return out
}
