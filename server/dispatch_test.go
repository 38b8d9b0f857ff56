package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

// markerService records which service handled the request, since func
// values cannot be compared directly.
func markerService(dst *string, name string) Service {
	return ServiceFunc(func(_ *Request, _ ResponseWriter) { *dst = name })
}

func TestLongestPrefixWins(t *testing.T) {
	var hit string
	d := newDispatcher()
	require.NoError(t, d.add("/", markerService(&hit, "root")))
	require.NoError(t, d.add("/api/", markerService(&hit, "api")))
	require.NoError(t, d.add("/api/v2/", markerService(&hit, "apiV2")))

	tests := []struct {
		path string
		want string
	}{
		{"/api/v2/events", "apiV2"},
		{"/api/users", "api"},
		{"/index.html", "root"},
		{"/", "root"},
	}
	for _, tt := range tests {
		svc, ok := d.lookup(tt.path)
		require.True(t, ok, tt.path)
		svc.Handle(nil, nil)
		assert.Equal(t, tt.want, hit, tt.path)
	}
}

func TestLookupMissWithoutRoot(t *testing.T) {
	var hit string
	d := newDispatcher()
	require.NoError(t, d.add("/api/", markerService(&hit, "api")))

	_, ok := d.lookup("/other")
	assert.False(t, ok)
}

func TestAddValidation(t *testing.T) {
	var hit string
	d := newDispatcher()
	svc := markerService(&hit, "x")
	assert.ErrorIs(t, d.add("", svc), errors.ErrInvalidConfig)
	assert.ErrorIs(t, d.add("noslash", svc), errors.ErrInvalidConfig)
	assert.ErrorIs(t, d.add("/x", nil), errors.ErrInvalidConfig)

	require.NoError(t, d.add("/x", svc))
	assert.ErrorIs(t, d.add("/x", svc), errors.ErrDuplicateID)
}

func TestRemoveRestoresShorterMatch(t *testing.T) {
	var hit string
	d := newDispatcher()
	require.NoError(t, d.add("/", markerService(&hit, "root")))
	require.NoError(t, d.add("/api/", markerService(&hit, "api")))

	require.NoError(t, d.remove("/api/"))
	svc, ok := d.lookup("/api/users")
	require.True(t, ok)
	svc.Handle(nil, nil)
	assert.Equal(t, "root", hit)

	assert.ErrorIs(t, d.remove("/api/"), errors.ErrNotFound)
}
