package ruleerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/value"
)

func TestError_Format(t *testing.T) {
	err := New(CodeNoSuchSlot, "get", "slot index out of range", value.Int(7))

	assert.Equal(t, "NO_SUCH_SLOT: get: slot index out of range (value 7 (integer))", err.Error())
}

func TestAnnotate_AppendsTrail(t *testing.T) {
	base := New(CodeBadArgument, "test", "bad", nil)

	err := Annotate(base, "rule LHS (slot test) node 3")
	err = Annotate(err, "rule LHS (join) node 5")

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"rule LHS (slot test) node 3", "rule LHS (join) node 5"}, re.Trail)
	assert.Contains(t, err.Error(), "while executing rule LHS (join) node 5")
}

func TestAnnotate_WrapsForeignErrors(t *testing.T) {
	cause := fmt.Errorf("division by zero")

	err := Annotate(cause, "rule LHS (slot test) node 2")

	assert.True(t, IsCode(err, CodeLHS))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "error during LHS execution")
}

func TestAnnotate_PassesControlSignals(t *testing.T) {
	err := Annotate(ErrHalt, "anywhere")
	assert.Same(t, ErrHalt, err)
	assert.Nil(t, Annotate(nil, "anywhere"))
}

func TestFromPanic(t *testing.T) {
	err := FromPanic("boom", "rule LHS (class test) node 1")

	assert.True(t, IsCode(err, CodeLHS))
	assert.Contains(t, err.Error(), "boom")
}

func TestIsControl(t *testing.T) {
	assert.True(t, IsControl(ErrBreak))
	assert.True(t, IsControl(fmt.Errorf("wrapped: %w", ErrContinue)))
	assert.False(t, IsControl(errors.New("other")))
}
