package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type window struct {
	Start int `json:"start" validate:"gt=0"`
	End   int `json:"end" validate:"gtfield=Start"`
}

type schedule struct {
	Name   string `json:"name" validate:"required"`
	Window window `json:"window"`
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(schedule{Name: "a", Window: window{Start: 1, End: 2}}))

	tests := []struct {
		name   string
		in     schedule
		field  string
		reason string
	}{
		{"missing name", schedule{Window: window{Start: 1, End: 2}}, "name", "is required"},
		{"zero start", schedule{Name: "a", Window: window{Start: 0, End: 2}}, "window.start", "must be greater than 0"},
		{"end before start", schedule{Name: "a", Window: window{Start: 3, End: 2}}, "window.end", "must be greater than start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.in)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}
