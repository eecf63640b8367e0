package model

// KeyType classifies the signal an identity key was derived from, in
// strict priority order: website is the strongest, unique the weakest.
type KeyType string

const (
	KeyWebsite KeyType = "website"
	KeyPhone   KeyType = "phone"
	KeyEmail   KeyType = "email"
	KeyCompany KeyType = "company"
	KeyUnique  KeyType = "unique"
)

// IdentityKey identifies the real-world entity a record refers to.
// Records with equal keys are fused into one merged record.
type IdentityKey struct {
	Type  KeyType
	Value string
}

// String renders the key in the "type:value" form used for grouping.
func (k IdentityKey) String() string {
	return string(k.Type) + ":" + k.Value
}
