package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	r := Success[int, string](42)
	assert.True(t, r.IsSuccess())
	assert.False(t, r.IsFailure())
	assert.Equal(t, 42, r.Value())
}

func TestFailure(t *testing.T) {
	r := Failure[int, string]("boom")
	assert.False(t, r.IsSuccess())
	assert.True(t, r.IsFailure())
	assert.Equal(t, "boom", r.Error())
}

func TestUnwrap(t *testing.T) {
	r := Success[int, string](7)
	value, _, ok := r.Unwrap()
	require.True(t, ok)
	assert.Equal(t, 7, value)

	r2 := Failure[int, string]("nope")
	_, err, ok2 := r2.Unwrap()
	require.False(t, ok2)
	assert.Equal(t, "nope", err)
}

func TestValuePanicsOnFailure(t *testing.T) {
	r := Failure[int, string]("bad")
	assert.Panics(t, func() { r.Value() })
}

func TestErrorPanicsOnSuccess(t *testing.T) {
	r := Success[int, string](1)
	assert.Panics(t, func() { _ = r.Error() })
}
