package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOk(t *testing.T) {
	r := Ok(42)

	assert.True(t, r.IsOk())
	assert.Nil(t, r.Failure())

	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	v, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestErr(t *testing.T) {
	cause := errors.New("no such row")
	r := Err[string](CodeNotFound, "customer missing", cause)

	assert.False(t, r.IsOk())
	assert.True(t, r.Is(CodeNotFound))
	assert.False(t, r.Is(CodeInternal))

	f := r.Failure()
	require.NotNil(t, f)
	assert.Equal(t, "customer missing", f.Error())
	assert.ErrorIs(t, f, cause)

	_, err := r.Unwrap()
	require.ErrorIs(t, err, cause)
}

func TestFromError(t *testing.T) {
	sentinel := errors.New("denied")
	classify := func(err error) Code {
		if errors.Is(err, sentinel) {
			return CodeUnauthorized
		}
		return CodeInternal
	}

	ok := FromError("value", nil, classify)
	assert.True(t, ok.IsOk())

	denied := FromError("", sentinel, classify)
	assert.True(t, denied.Is(CodeUnauthorized))

	unknown := FromError("", errors.New("disk full"), classify)
	assert.True(t, unknown.Is(CodeInternal))
}

func TestAsFailure(t *testing.T) {
	r := Err[int](CodeValidation, "bad input", nil)
	_, err := r.Unwrap()

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, f.Code)

	_, ok = AsFailure(errors.New("plain"))
	assert.False(t, ok)
}

func TestZeroValueIsOk(t *testing.T) {
	var r Result[int]
	assert.True(t, r.IsOk())
	v, ok := r.Value()
	assert.True(t, ok)
	assert.Zero(t, v)
}
