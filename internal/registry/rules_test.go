package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedRules(t *testing.T) {
	rules, err := Default()
	require.NoError(t, err)

	assert.Equal(t, Synonym{Old: "urls", New: "Website"}, rules.Synonyms[0])
	assert.Contains(t, rules.Synonyms, Synonym{Old: "notes", New: "Description", IfPresent: true})
	assert.Equal(t, 0.9, rules.SparseVariantThreshold)
	assert.Contains(t, rules.MetadataColumns, "file_id")
	assert.Equal(t, "CompanyNameEN", rules.PriorityColumns[0])
}

func TestDefault_SplitTargets(t *testing.T) {
	rules, err := Default()
	require.NoError(t, err)

	require.Len(t, rules.Splits, 2)
	assert.Equal(t, ScriptSplit{Source: "company_names", Latin: "CompanyNameEN", Persian: "CompanyNameFA"}, rules.Splits[0])
	assert.Equal(t, "addresses", rules.Splits[1].Source)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sparse_variant_threshold: 0.5\n"), 0o644))

	rules, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, rules.SparseVariantThreshold)
	// untouched fields keep defaults
	assert.NotEmpty(t, rules.Synonyms)
	assert.NotEmpty(t, rules.PriorityColumns)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
