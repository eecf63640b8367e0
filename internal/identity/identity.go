// Package identity derives the grouping key that decides which records
// refer to the same company or contact.
package identity

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/normalize"
)

// Field scan orders. First match wins; an empty candidate after
// normalization never counts and the cascade moves on.
var (
	websiteFields = []string{"Website", "urls", "url"}
	phoneFields   = []string{"phones", "Phone1", "Phone2", "Phone3", "Phone4", "WhatsApp", "Telegram", "Fax"}
	emailFields   = []string{"Email", "emails"}
	companyFields = []string{"CompanyNameEN", "CompanyNameFA", "company_names"}
)

// minPhoneDigits guards against short extension-style numbers grouping
// unrelated records.
const minPhoneDigits = 8

// minCompanyLen guards against stopword-only names collapsing to a short
// junk token.
const minCompanyLen = 3

// ExtractKey derives the identity key for one record. It is a pure
// function of record content down to the unique fallback: a record with
// no usable signal and no file/page provenance gets a fresh UUID key, so
// it always forms its own group.
func ExtractKey(rec model.Record) model.IdentityKey {
	// Website and email are else-chains: only the first non-blank
	// candidate is examined, and an unusable value moves the cascade to
	// the next rule, not the next alias. Phone and company instead scan
	// all their fields for the first value that passes the test.
	if raw := firstPresent(rec, websiteFields); raw != "" {
		if w := normalize.Website(raw); w != "" {
			return model.IdentityKey{Type: model.KeyWebsite, Value: w}
		}
	}

	for _, f := range phoneFields {
		if p := normalize.Phone(rec[f]); len(p) >= minPhoneDigits {
			return model.IdentityKey{Type: model.KeyPhone, Value: p}
		}
	}

	if raw := firstPresent(rec, emailFields); raw != "" {
		if e := normalize.Generic(raw); strings.Contains(e, "@") {
			return model.IdentityKey{Type: model.KeyEmail, Value: e}
		}
	}

	for _, f := range companyFields {
		if n := normalize.CompanyName(rec[f]); utf8.RuneCountInString(n) > minCompanyLen {
			return model.IdentityKey{Type: model.KeyCompany, Value: n}
		}
	}

	fileID := strings.TrimSpace(rec[model.FieldFileID])
	page := strings.TrimSpace(rec[model.FieldPage])
	if fileID != "" && page != "" {
		return model.IdentityKey{Type: model.KeyUnique, Value: fileID + "_page" + page}
	}

	return model.IdentityKey{Type: model.KeyUnique, Value: uuid.NewString()}
}

// firstPresent returns the first candidate field holding a non-blank
// value.
func firstPresent(rec model.Record, fields []string) string {
	for _, f := range fields {
		if normalize.Generic(rec[f]) != "" {
			return rec[f]
		}
	}
	return ""
}
