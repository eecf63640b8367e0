// Package registry holds the column rules the post-processor applies to
// the merged table: synonym collapses, script splits, metadata drops and
// the canonical column order. Defaults are embedded; a deployment can
// override them with a rules file.
package registry

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Synonym maps an incoming column onto its canonical name. Old values
// fill the new column only where it is empty; the old column is dropped.
// With IfPresent the rule applies only when the new column already
// exists, so a free-form column is not renamed into a canonical one it
// has no sibling for.
type Synonym struct {
	Old       string `yaml:"old"`
	New       string `yaml:"new"`
	IfPresent bool   `yaml:"if_present"`
}

// ScriptSplit routes an ambiguous column's cells into a Latin-script and
// a native-script target column based on cell content.
type ScriptSplit struct {
	Source  string `yaml:"source"`
	Latin   string `yaml:"latin"`
	Persian string `yaml:"persian"`
}

// Rules is the full post-processing rule set.
type Rules struct {
	// Synonyms are applied sequentially; later rules may reference
	// columns earlier rules created or emptied.
	Synonyms []Synonym `yaml:"synonyms"`

	// Splits lists script-ambiguous columns and their typed targets.
	Splits []ScriptSplit `yaml:"splits"`

	// MetadataColumns are provenance and scratch columns stripped before
	// cleanup.
	MetadataColumns []string `yaml:"metadata_columns"`

	// PriorityColumns come first in the output, in this order; remaining
	// columns follow alphabetically.
	PriorityColumns []string `yaml:"priority_columns"`

	// SparseVariantThreshold drops a [N] variant column empty in more
	// than this fraction of rows.
	SparseVariantThreshold float64 `yaml:"sparse_variant_threshold"`
}

// Default returns the embedded rule set.
func Default() (*Rules, error) {
	return parse(defaultRules)
}

// LoadFile reads a rule set from a YAML file. Fields omitted from the
// file fall back to the embedded defaults.
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read rules %s", path)
	}
	rules, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, eris.Wrapf(err, "registry: parse rules %s", path)
	}
	return rules, nil
}

func parse(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrap(err, "registry: parse embedded rules")
	}
	if rules.SparseVariantThreshold <= 0 {
		rules.SparseVariantThreshold = 0.9
	}
	return &rules, nil
}
