package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

func TestConfigureAndOpen(t *testing.T) {
	m := NewManager(nil)
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, m.Configure("clickstream", dbURL))

	db, err := m.Database("clickstream")
	require.NoError(t, err)
	require.NotNil(t, db)

	// second lookup reuses the handle
	again, err := m.Database("clickstream")
	require.NoError(t, err)
	assert.Same(t, db, again)

	require.NoError(t, m.Close())
}

func TestUnknownDatabase(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Database("nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestConfigureValidation(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.Configure("", "sqlite://x.db"), errors.ErrMissingConfig)
	assert.ErrorIs(t, m.Configure("x", ""), errors.ErrMissingConfig)
	assert.Error(t, m.Configure("x", "postgres://localhost/db"))
}

func TestRefreshReopens(t *testing.T) {
	m := NewManager(nil)
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, m.Configure("clickstream", dbURL))

	first, err := m.Database("clickstream")
	require.NoError(t, err)
	require.NoError(t, m.Refresh())

	second, err := m.Database("clickstream")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.NoError(t, m.Close())
}
