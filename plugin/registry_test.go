package plugin

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

type countingPlugin struct {
	events atomic.Uint64
}

func (c *countingPlugin) EventsIn() uint64 { return c.events.Load() }

func TestAddAssignsID(t *testing.T) {
	r := NewRegistry[*countingPlugin]()

	id, err := r.Add("", &countingPlugin{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, r.Has(id))
}

func TestAddDuplicateFails(t *testing.T) {
	r := NewRegistry[*countingPlugin]()

	_, err := r.Add("a", &countingPlugin{})
	require.NoError(t, err)
	_, err = r.Add("a", &countingPlugin{})
	assert.ErrorIs(t, err, errors.ErrDuplicateID)
	assert.Equal(t, 1, r.Len())
}

func TestGetAndRemove(t *testing.T) {
	r := NewRegistry[*countingPlugin]()
	p := &countingPlugin{}

	id, err := r.Add("a", p)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, p, got)

	require.NoError(t, r.Remove("a"))
	_, err = r.Get("a")
	assert.ErrorIs(t, err, errors.ErrPluginNotFound)
	assert.ErrorIs(t, r.Remove("a"), errors.ErrPluginNotFound)
}

func TestHeldReferenceSurvivesRemoval(t *testing.T) {
	r := NewRegistry[*countingPlugin]()
	p := &countingPlugin{}
	_, err := r.Add("a", p)
	require.NoError(t, err)

	held, err := r.Get("a")
	require.NoError(t, err)
	require.NoError(t, r.Remove("a"))

	// The held reference is still usable after the registry drops its own.
	held.events.Add(3)
	assert.Equal(t, uint64(3), p.EventsIn())
}

func TestAggregateSumsAcrossPlugins(t *testing.T) {
	r := NewRegistry[*countingPlugin]()
	for _, n := range []uint64{5, 7, 11} {
		p := &countingPlugin{}
		p.events.Add(n)
		_, err := r.Add("", p)
		require.NoError(t, err)
	}

	total := r.Aggregate(func(p *countingPlugin) uint64 { return p.EventsIn() })
	assert.Equal(t, uint64(23), total)
}

func TestEachStopsEarly(t *testing.T) {
	r := NewRegistry[*countingPlugin]()
	for i := 0; i < 4; i++ {
		_, err := r.Add("", &countingPlugin{})
		require.NoError(t, err)
	}

	var seen int
	r.Each(func(string, *countingPlugin) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
	assert.Equal(t, 4, r.Len())
	assert.Len(t, r.IDs(), 4)
}

func TestClear(t *testing.T) {
	r := NewRegistry[*countingPlugin]()
	_, err := r.Add("a", &countingPlugin{})
	require.NoError(t, err)
	_, err = r.Add("b", &countingPlugin{})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Clear())
	assert.Equal(t, 0, r.Len())
}
