// Package normalize holds the pure value normalizers used for identity
// extraction and fusion equality. Every function is total: nil-ish input
// yields an empty string, never an error.
package normalize

import (
	"regexp"
	"strings"
)

// nanSentinels are string renderings of "no value" that spreadsheet and
// JSON plumbing leak into cells.
var nanSentinels = map[string]struct{}{
	"nan": {}, "none": {}, "null": {}, "n/a": {}, "-": {},
}

// Generic trims and lowercases a value, mapping NaN-like sentinels to "".
// This is the equality basis for fusion: deliberately looser than the
// specialized normalizers below.
func Generic(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	if _, ok := nanSentinels[s]; ok {
		return ""
	}
	return s
}

// ValuesEqual is the conflict test used by the record fuser.
func ValuesEqual(a, b string) bool {
	return Generic(a) == Generic(b)
}

var schemeRe = regexp.MustCompile(`^https?://`)

// Website canonicalizes a URL for identity matching: lowercase, scheme
// and leading www stripped, host only (path and query cut), trailing
// dots removed. Idempotent.
func Website(v string) string {
	u := Generic(v)
	if u == "" {
		return ""
	}
	u = schemeRe.ReplaceAllString(u, "")
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexAny(u, "/?"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, ".")
}

var nonPhoneRe = regexp.MustCompile(`[^\d+]`)

// Phone strips everything except digits and "+". A leading plus survives;
// stray pluses elsewhere are kept as-is since the value is only compared,
// never dialed.
func Phone(v string) string {
	s := strings.TrimSpace(v)
	if Generic(s) == "" {
		return ""
	}
	return nonPhoneRe.ReplaceAllString(s, "")
}

// companyStopwords are corporate suffixes and legal-entity words removed
// before company names are compared, in English and Persian. The list is
// curated, not exhaustive, and stripping is substring-based to match
// values like "Acme Co." against "ACME". That also eats "co" inside words
// like "coordination"; accepted behavior, keep the list in this order.
var companyStopwords = []string{
	"شرکت", "company", "co.", "co", "ltd", "inc", "corp",
	"سهامی", "خاص", "عام", "private", "public", "holding",
	"international", "بین المللی", "گروه", "group",
}

var (
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// CompanyName reduces a company name to a comparable token string:
// lowercase, stopwords removed, punctuation stripped, whitespace
// collapsed. Idempotent.
func CompanyName(v string) string {
	n := Generic(v)
	if n == "" {
		return ""
	}
	for _, w := range companyStopwords {
		n = strings.ReplaceAll(n, w, " ")
	}
	n = punctRe.ReplaceAllString(n, " ")
	n = multiSpaceRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// HasPersian reports whether the value contains any character in the
// Arabic-script block used by Persian text. Drives the script-based
// column split in the post-processor.
func HasPersian(v string) bool {
	for _, r := range v {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}
