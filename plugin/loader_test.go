package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

func TestResolveBuiltin(t *testing.T) {
	l := NewLoader(nil)
	require.NoError(t, l.RegisterBuiltin("LogCodec", func() any { return "log" }))

	e, err := l.Resolve("LogCodec")
	require.NoError(t, err)
	assert.Equal(t, "LogCodec", e.Name)
	assert.Equal(t, "log", e.Create())
}

func TestResolveUnknownType(t *testing.T) {
	l := NewLoader(nil, t.TempDir())
	_, err := l.Resolve("NoSuchCodec")
	assert.ErrorIs(t, err, errors.ErrPluginNotFound)
}

func TestRegisterBuiltinValidation(t *testing.T) {
	l := NewLoader(nil)
	assert.ErrorIs(t, l.RegisterBuiltin("", func() any { return nil }), errors.ErrInvalidConfig)
	assert.ErrorIs(t, l.RegisterBuiltin("X", nil), errors.ErrInvalidConfig)

	require.NoError(t, l.RegisterBuiltin("X", func() any { return 1 }))
	err := l.RegisterBuiltin("X", func() any { return 2 })
	assert.Error(t, err)
}
