package postform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("Title")("  "))
	assert.NoError(t, validateRequired("Title")("Teaser"))

	assert.NoError(t, validateDate("2026-04-01"))
	assert.Error(t, validateDate("04/01/2026"))

	assert.NoError(t, validateOptionalClock(""))
	assert.NoError(t, validateOptionalClock("09:30"))
	assert.Error(t, validateOptionalClock("9.30"))

	assert.NoError(t, validatePositive("24"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("soon"))
}

func TestOptional(t *testing.T) {
	assert.Nil(t, optional("   "))
	if v := optional(" note "); assert.NotNil(t, v) {
		assert.Equal(t, "note", *v)
	}
}
