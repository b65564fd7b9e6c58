package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without internal",
			err:  New("type_conflict", "Type exists with a different kind"),
			want: "type_conflict: Type exists with a different kind",
		},
		{
			name: "with internal",
			err:  New("substrate_failure", "Substrate operation failed").WithInternal(errors.New("io timeout")),
			want: "substrate_failure: Substrate operation failed (io timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	err := ErrTypeConflict.WithMessagef("label %q already defines an entity type", "person")
	assert.ErrorIs(t, err, ErrTypeConflict)
	assert.NotErrorIs(t, err, ErrReadOnly)

	wrapped := fmt.Errorf("put type: %w", err)
	assert.ErrorIs(t, wrapped, ErrTypeConflict)
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("conflict at key")
	err := ErrSubstrate.WithInternal(inner)
	assert.ErrorIs(t, err, inner)
}

func TestError_WithDetails(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]any{"failures": 3})
	require.NotNil(t, err.Details)
	assert.Equal(t, 3, err.Details["failures"])
	// original sentinel is untouched
	assert.Nil(t, ErrValidation.Details)
}

func TestError_CopiesDoNotAlias(t *testing.T) {
	a := ErrReadOnly.WithMessage("custom")
	assert.Equal(t, ErrReadOnly.Code, a.Code)
	assert.NotEqual(t, ErrReadOnly.Message, a.Message)
}
