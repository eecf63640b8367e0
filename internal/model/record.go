package model

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Record is one page or row of extracted lead data: an open-ended mapping
// from field name to value. Upstream producers (OCR, QR decoding, web
// scraping, spreadsheet rows) each emit their own field sets, so the shape
// is deliberately schema-less. Absent fields are absent keys; loaders never
// store empty strings.
//
// A field name of the form "base[N]" (N >= 2) holds the N-th value for
// "base" when one record carries multiple values, or when fusion preserved
// a conflicting value from another record.
type Record map[string]string

// Provenance fields stamped by the scan loader. They identify the source
// page and are stripped from the final table by the post-processor.
const (
	FieldFileID   = "file_id"
	FieldFileName = "file_name"
	FieldPage     = "page"
)

var variantRe = regexp.MustCompile(`\[(\d+)\]$`)

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// BaseField strips a trailing [N] variant suffix from a field name.
// "Phone1[2]" -> "Phone1"; "Phone1" is returned unchanged.
func BaseField(name string) string {
	return variantRe.ReplaceAllString(name, "")
}

// IsVariant reports whether a field name carries a [N] variant suffix.
func IsVariant(name string) bool {
	return variantRe.MatchString(name)
}

// VariantName builds the field name for the n-th value of base.
// n == 1 is the bare base name.
func VariantName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "[" + strconv.Itoa(n) + "]"
}

// Fingerprint returns a canonical serialization of the record, used by
// loaders to drop exact-duplicate rows.
func (r Record) Fingerprint() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r[k])
		b.WriteByte('\x1f')
	}
	return b.String()
}

// Values collects every value stored under base and its [N] variants.
func (r Record) Values(base string) []string {
	var out []string
	if v, ok := r[base]; ok {
		out = append(out, v)
	}
	for n := 2; ; n++ {
		v, ok := r[VariantName(base, n)]
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
