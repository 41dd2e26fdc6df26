package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName_Empty(t *testing.T) {
	assert.Equal(t, "", Name(""))
	assert.Equal(t, "", Name("   "))
}

func TestName_Lowercase(t *testing.T) {
	assert.Equal(t, "owen glassburn", Name("Owen Glassburn"))
}

func TestName_Punctuation(t *testing.T) {
	assert.Equal(t, "oconnor", Name("O'Connor"))
	assert.Equal(t, "smith and jones", Name("Smith & Jones"))
}

func TestName_Diacritics(t *testing.T) {
	assert.Equal(t, "jose alvarez", Name("José Álvarez"))
}

func TestName_DashToSpace(t *testing.T) {
	assert.Equal(t, "smith garcia", Name("Smith-Garcia"))
}

func TestName_CollapseSpaces(t *testing.T) {
	assert.Equal(t, "owen glassburn", Name("  Owen   Glassburn  "))
}

func TestCompany_StripsSuffixes(t *testing.T) {
	assert.Equal(t, "abc supply", Company("ABC Supply Co"))
	assert.Equal(t, "abc supply", Company("ABC Supply Inc"))
	assert.Equal(t, "abc supply", Company("ABC Supply, Inc."))
	assert.Equal(t, "abc supply", Company("ABC Supply LLC"))
	assert.Equal(t, "abc supply", Company("ABC Supply Corporation"))
}

func TestCompany_SameCanonicalForm(t *testing.T) {
	// The §8 vendor scenario: both spellings must collide on one key.
	assert.Equal(t, Company("ABC Supply Co"), Company("ABC Supply Inc"))
}

func TestCompany_OnlySuffix(t *testing.T) {
	// A name that is just a legal suffix is not stripped to nothing.
	assert.Equal(t, "llc", Company("LLC"))
}

func TestCompany_NoSuffix(t *testing.T) {
	assert.Equal(t, "vanguard builders", Company("Vanguard Builders"))
}
