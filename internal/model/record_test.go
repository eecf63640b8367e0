package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseField(t *testing.T) {
	assert.Equal(t, "Phone1", BaseField("Phone1[2]"))
	assert.Equal(t, "Phone1", BaseField("Phone1"))
	assert.Equal(t, "Email", BaseField("Email[12]"))
}

func TestIsVariant(t *testing.T) {
	assert.True(t, IsVariant("Phone1[2]"))
	assert.False(t, IsVariant("Phone1"))
	assert.False(t, IsVariant("Products[x]"))
}

func TestVariantName(t *testing.T) {
	assert.Equal(t, "Phone1", VariantName("Phone1", 1))
	assert.Equal(t, "Phone1[2]", VariantName("Phone1", 2))
	assert.Equal(t, "Phone1", VariantName("Phone1", 0))
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a := Record{"Website": "a.example", "Phone1": "0912"}
	b := Record{"Phone1": "0912", "Website": "a.example"}
	c := Record{"Phone1": "0912", "Website": "b.example"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestValues(t *testing.T) {
	r := Record{"Phone1": "0912", "Phone1[2]": "0911", "Phone1[4]": "0910"}

	// variant scanning stops at the first gap
	assert.Equal(t, []string{"0912", "0911"}, r.Values("Phone1"))
	assert.Empty(t, r.Values("Email"))
}

func TestClone_Independent(t *testing.T) {
	a := Record{"Website": "a.example"}
	b := a.Clone()
	b["Website"] = "b.example"

	assert.Equal(t, "a.example", a["Website"])
}
