package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Anna@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", email)

	for _, bad := range []string{"", "anna", "anna@", "@example.com", "a@b@c.com", "anna@example", "an na@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeLink(t *testing.T) {
	link, err := NormalizeLink(" https://example.com/a?b=1 ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=1", link)

	for _, bad := range []string{"", "example.com", "ftp://example.com", "https://", "javascript:alert(1)"} {
		_, err := NormalizeLink(bad)
		assert.Error(t, err, bad)
	}

	_, err = NormalizeLink("https://example.com/" + strings.Repeat("a", MaxExternalLinkLength))
	assert.Error(t, err)
}

func TestValidateOptionalLink(t *testing.T) {
	empty := " "
	bad := "nope"
	assert.NoError(t, ValidateOptionalLink(nil))
	assert.NoError(t, ValidateOptionalLink(&empty))
	assert.Error(t, ValidateOptionalLink(&bad))
}

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("имя", "Анна", 1, 4))
	assert.Error(t, ValidateLength("имя", "", 1, 4))
	assert.Error(t, ValidateLength("имя", "Анна!", 1, 4))
}
