package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	base := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		notFound   bool
		validation bool
		permission bool
		transient  bool
	}{
		{"not found", NotFound("project", "p1"), true, false, false, false},
		{"wrapped not found", fmt.Errorf("getting project: %w", NotFound("project", "p1")), true, false, false, false},
		{"validation", Invalid("first", "must be > 0"), false, true, false, false},
		{"permission", Forbidden("delete comment"), false, false, true, false},
		{"transient", Transient("marking read", base), false, false, false, true},
		{"plain", base, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.permission, IsPermission(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestTransientKeepsTaxonomy(t *testing.T) {
	nf := NotFound("comment", "c1")
	assert.Same(t, nf, Transient("deleting comment", nf))
	assert.NoError(t, Transient("noop", nil))

	err := Transient("fetching", errors.New("boom"))
	assert.EqualError(t, err, "fetching: boom")
	assert.EqualError(t, errors.Unwrap(err), "boom")
}

func TestValidationMessage(t *testing.T) {
	assert.EqualError(t, Invalid("third", "must be greater than %d", 3), "invalid third: must be greater than 3")
	assert.EqualError(t, &ValidationError{Reason: "empty"}, "invalid input: empty")
}
