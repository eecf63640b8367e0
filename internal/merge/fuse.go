// Package merge implements record fusion and the grouping engine that
// folds records sharing an identity key into one merged record.
package merge

import (
	"sort"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/normalize"
)

// MergeTwo fuses two records field by field. Agreement (per the generic
// equality test) keeps r1's value; a genuine conflict keeps r1's value
// under the field name and parks r2's value under the smallest unused
// [N] variant of the base field, so three-way conflicts chain as
// field, field[2], field[3].
//
// Which side keeps the bare name depends on argument order; the value
// multiset per base field is preserved regardless. No value is dropped.
func MergeTwo(r1, r2 model.Record) model.Record {
	merged := make(model.Record, len(r1)+len(r2))

	for _, key := range unionKeys(r1, r2) {
		v1, v2 := r1[key], r2[key]
		switch {
		case v1 == "" && v2 == "":
		case v1 == "":
			place(merged, key, v2)
		case v2 == "":
			place(merged, key, v1)
		case normalize.ValuesEqual(v1, v2):
			place(merged, key, v1)
		default:
			place(merged, key, v1)
			placeVariant(merged, model.BaseField(key), v2)
		}
	}

	return merged
}

// unionKeys returns the sorted union of both records' field names.
// Sorting keeps fusion deterministic for a given argument order.
func unionKeys(r1, r2 model.Record) []string {
	seen := make(map[string]struct{}, len(r1)+len(r2))
	keys := make([]string, 0, len(r1)+len(r2))
	for k := range r1 {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range r2 {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// place stores v under key, spilling to a variant of the base field when
// an earlier conflict already claimed the slot.
func place(m model.Record, key, v string) {
	if _, taken := m[key]; !taken {
		m[key] = v
		return
	}
	placeVariant(m, model.BaseField(key), v)
}

// placeVariant stores v under the smallest unused [N] variant (N >= 2)
// of base.
func placeVariant(m model.Record, base, v string) {
	for n := 2; ; n++ {
		name := model.VariantName(base, n)
		if _, taken := m[name]; !taken {
			m[name] = v
			return
		}
	}
}
