package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapConvention(t *testing.T) {
	err := Wrap(ErrMalformed, "LogCodec", "Read", "parse record")
	require.Error(t, err)
	assert.Equal(t, "LogCodec.Read: parse record failed: malformed record", err.Error())
	assert.True(t, Is(err, ErrMalformed))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
	assert.NoError(t, WrapKind(KindIO, nil, "a", "b", "c"))
}

func TestClassifySentinels(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrPluginNotFound, KindNotFound},
		{ErrReactorNotFound, KindNotFound},
		{ErrInvalidConfig, KindInvalidConfig},
		{ErrNotAnObject, KindInvalidConfig},
		{ErrMalformed, KindMalformed},
		{ErrHeadersTooLarge, KindMalformed},
		{ErrTypeMismatch, KindTypeMismatch},
		{ErrWrongEventType, KindTypeMismatch},
		{ErrTermNoLongerDefined, KindTypeMismatch},
		{ErrAlreadyRunning, KindLifecycle},
		{ErrNotRunning, KindLifecycle},
		{New("something exploded"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Classify(tt.err), "error %v", tt.err)
	}
}

func TestClassifyWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrCodecNotFound)
	assert.Equal(t, KindNotFound, Classify(err))
	assert.True(t, IsNotFound(err))

	err = WrapIO(New("connection reset"), "Connection", "Write", "flush response")
	assert.Equal(t, KindIO, Classify(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "type_mismatch", KindTypeMismatch.String())
	assert.Equal(t, "internal", KindInternal.String())
}
