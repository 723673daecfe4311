package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"no cause", New(CodeInvalidInput, "bad dims"), "INVALID_INPUT: bad dims"},
		{
			"with cause",
			Wrap(CodeDataCorruption, "missing slot", stderrors.New("slot 3 absent")),
			"DATA_CORRUPTION: missing slot: slot 3 absent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(CodeResourceExhausted, "pool", cause)
	assert.Same(t, cause, stderrors.Unwrap(err))
}

func TestWithDetails(t *testing.T) {
	err := New(CodeInvalidInput, "bad lists").WithDetails("height", 9)
	assert.Equal(t, 9, err.Details["height"])
}

func TestIsHelpers(t *testing.T) {
	corrupt := Corruption("bad tuple", nil)
	assert.True(t, IsCorruption(corrupt))
	assert.False(t, IsInvalidInput(corrupt))

	invalid := InvalidInput("dims out of range", nil)
	assert.True(t, IsInvalidInput(invalid))

	interrupted := Interrupted("cancelled")
	assert.True(t, IsInterrupted(interrupted))

	assert.False(t, Is(nil, CodeDataCorruption))
	assert.False(t, Is(stderrors.New("plain"), CodeDataCorruption))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(CodeDataCorruption, "msg", nil))
}
