package merge

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairscan/leadmerge-cli/internal/model"
)

func TestMergeTwo_DisjointFields(t *testing.T) {
	r1 := model.Record{"Phone1": "021-555-0001"}
	r2 := model.Record{"Email": "x@acme.com"}

	merged := MergeTwo(r1, r2)

	assert.Equal(t, model.Record{
		"Phone1": "021-555-0001",
		"Email":  "x@acme.com",
	}, merged)
}

func TestMergeTwo_AgreementKeepsFirst(t *testing.T) {
	r1 := model.Record{"CompanyNameEN": "Acme"}
	r2 := model.Record{"CompanyNameEN": " ACME "}

	merged := MergeTwo(r1, r2)

	assert.Equal(t, "Acme", merged["CompanyNameEN"])
	assert.NotContains(t, merged, "CompanyNameEN[2]")
}

func TestMergeTwo_ConflictCreatesVariant(t *testing.T) {
	r1 := model.Record{"Phone1": "0911"}
	r2 := model.Record{"Phone1": "0912"}

	merged := MergeTwo(r1, r2)

	assert.Equal(t, "0911", merged["Phone1"])
	assert.Equal(t, "0912", merged["Phone1[2]"])
}

func TestMergeTwo_ThreeWayConflictChains(t *testing.T) {
	merged := MergeTwo(model.Record{"Phone1": "a"}, model.Record{"Phone1": "b"})
	merged = MergeTwo(merged, model.Record{"Phone1": "c"})

	assert.ElementsMatch(t, []string{"a", "b", "c"}, merged.Values("Phone1"))
}

func TestMergeTwo_VariantInputsStayLossless(t *testing.T) {
	r1 := model.Record{"Phone1": "a", "Phone1[2]": "b"}
	r2 := model.Record{"Phone1": "c", "Phone1[2]": "d"}

	merged := MergeTwo(r1, r2)

	got := collectBase(merged, "Phone1")
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, got)
}

func TestMergeTwo_Lossless(t *testing.T) {
	r1 := model.Record{"A": "1", "B": "x", "C": "only1"}
	r2 := model.Record{"A": "2", "B": "x", "D": "only2"}

	merged := MergeTwo(r1, r2)

	assert.ElementsMatch(t, []string{"1", "2"}, collectBase(merged, "A"))
	assert.ElementsMatch(t, []string{"x"}, collectBase(merged, "B"))
	assert.ElementsMatch(t, []string{"only1"}, collectBase(merged, "C"))
	assert.ElementsMatch(t, []string{"only2"}, collectBase(merged, "D"))
}

func TestMergeTwo_OrderAffectsNamingOnly(t *testing.T) {
	r1 := model.Record{"Phone1": "a"}
	r2 := model.Record{"Phone1": "b"}

	ab := MergeTwo(r1, r2)
	ba := MergeTwo(r2, r1)

	va := ab.Values("Phone1")
	vb := ba.Values("Phone1")
	sort.Strings(va)
	sort.Strings(vb)
	assert.Equal(t, va, vb)
	assert.Equal(t, "a", ab["Phone1"])
	assert.Equal(t, "b", ba["Phone1"])
}

// collectBase gathers every value stored under base and any of its [N]
// variants, however deep the chain grew.
func collectBase(r model.Record, base string) []string {
	var out []string
	for k, v := range r {
		if model.BaseField(k) == base || k == base {
			out = append(out, v)
		}
	}
	return out
}
