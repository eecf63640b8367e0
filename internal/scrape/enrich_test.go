package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairscan/leadmerge-cli/internal/model"
)

func TestFindURLColumn(t *testing.T) {
	col, err := FindURLColumn([]string{"Name", "Company Website", "Phone"})
	require.NoError(t, err)
	assert.Equal(t, "Company Website", col)

	col, err = FindURLColumn([]string{"Name", "URL"})
	require.NoError(t, err)
	assert.Equal(t, "URL", col)

	_, err = FindURLColumn([]string{"Name", "Phone"})
	require.Error(t, err)
}

func TestRowURLs_DedupesAndNormalizes(t *testing.T) {
	rows := []model.Record{
		{"URL": "acme.example/"},
		{"URL": "https://acme.example"},
		{"URL": "beta.example"},
		{"Name": "no url"},
	}

	urls := RowURLs(rows, "URL")
	assert.Equal(t, []string{"https://acme.example", "https://beta.example"}, urls)
}

func TestEnrich_FillsEmptyCells(t *testing.T) {
	rows := []model.Record{{"URL": "acme.example", "CompanyNameEN": "Acme"}}
	scraped := []model.Record{{"Website": "https://acme.example", "Email": "info@acme.example", "CompanyNameEN": "Acme"}}

	out, touched := Enrich(rows, "URL", scraped)
	assert.Equal(t, 1, touched)
	assert.Equal(t, "info@acme.example", out[0]["Email"])
	assert.Equal(t, "Acme", out[0]["CompanyNameEN"], "matching value is not duplicated")
}

func TestEnrich_KeepsConflictingValues(t *testing.T) {
	rows := []model.Record{{"URL": "acme.example", "Phone1": "0912", "Industry": "Trade"}}
	scraped := []model.Record{{"Website": "https://acme.example", "Phone1": "0911", "Industry": "Logistics"}}

	out, _ := Enrich(rows, "URL", scraped)
	assert.Equal(t, "0912, 0911", out[0]["Phone1"])
	assert.Equal(t, "Trade | Logistics", out[0]["Industry"])
}

func TestEnrich_SkipsFailedAndUnmatchedRows(t *testing.T) {
	rows := []model.Record{
		{"URL": "acme.example"},
		{"URL": "beta.example"},
		{"Name": "no url"},
	}
	scraped := []model.Record{
		{"Website": "https://acme.example", "status": "failed", "error": "unreachable"},
	}

	out, touched := Enrich(rows, "URL", scraped)
	assert.Zero(t, touched)
	assert.NotContains(t, out[0], "error")
	assert.Equal(t, rows[1], out[1])
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	rows := []model.Record{{"URL": "acme.example"}}
	scraped := []model.Record{{"Website": "https://acme.example", "Email": "x@acme.example"}}

	_, _ = Enrich(rows, "URL", scraped)
	assert.NotContains(t, rows[0], "Email")
}
