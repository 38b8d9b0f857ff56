package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/vocab"
)

const (
	eventTypeRef vocab.TermRef = 1
	hostRef      vocab.TermRef = 2
	bytesRef     vocab.TermRef = 3
	dateRef      vocab.TermRef = 4
)

func TestTypedAccessors(t *testing.T) {
	e := New(eventTypeRef)
	ts := time.Date(2008, 1, 10, 12, 31, 0, 0, time.UTC)

	e.SetString(hostRef, "192.168.10.10")
	e.SetUInt(bytesRef, 116)
	e.SetDateTime(dateRef, ts)

	s, err := e.GetString(hostRef)
	require.NoError(t, err)
	assert.Equal(t, "192.168.10.10", s)

	n, err := e.GetUInt(bytesRef)
	require.NoError(t, err)
	assert.Equal(t, uint64(116), n)

	got, err := e.GetDateTime(dateRef)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestGetUndefinedTerm(t *testing.T) {
	e := New(eventTypeRef)
	_, err := e.GetString(hostRef)
	assert.ErrorIs(t, err, errors.ErrTermNotFound)
	assert.False(t, e.IsDefined(hostRef))
}

func TestTypeMismatch(t *testing.T) {
	e := New(eventTypeRef)
	e.SetUInt(bytesRef, 42)

	_, err := e.GetString(bytesRef)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	_, err = e.GetInt(bytesRef)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestInsertionOrderAndMultimap(t *testing.T) {
	e := New(eventTypeRef)
	e.SetUInt(bytesRef, 1)
	e.SetString(hostRef, "a")
	e.SetUInt(bytesRef, 2)

	var refs []vocab.TermRef
	e.Each(func(ref vocab.TermRef, _ Value) bool {
		refs = append(refs, ref)
		return true
	})
	assert.Equal(t, []vocab.TermRef{bytesRef, hostRef, bytesRef}, refs)

	// Get returns the first inserted value.
	n, err := e.GetUInt(bytesRef)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestClearAndEmpty(t *testing.T) {
	e := New(eventTypeRef)
	assert.True(t, e.Empty())
	e.SetString(hostRef, "x")
	assert.False(t, e.Empty())
	e.Clear()
	assert.True(t, e.Empty())
	assert.Equal(t, eventTypeRef, e.Type())
}

func TestCloneEqualityAndIsolation(t *testing.T) {
	e := New(eventTypeRef)
	e.SetString(hostRef, "10.0.19.111")
	e.SetUInt(bytesRef, 208)
	e.SetDateTime(dateRef, time.Date(2007, 4, 5, 5, 37, 11, 0, time.UTC))

	c := e.Clone()
	assert.True(t, e.Equal(c))
	assert.True(t, c.Equal(e))

	c.SetUInt(bytesRef, 999)
	assert.False(t, e.Equal(c))
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 4, c.Len())
}

func TestEqualityIsOrderSensitive(t *testing.T) {
	a := New(eventTypeRef)
	a.SetString(hostRef, "h")
	a.SetUInt(bytesRef, 1)

	b := New(eventTypeRef)
	b.SetUInt(bytesRef, 1)
	b.SetString(hostRef, "h")

	assert.False(t, a.Equal(b))
}

func TestEqualityAcrossEventTypes(t *testing.T) {
	a := New(eventTypeRef)
	b := New(bytesRef)
	assert.False(t, a.Equal(b))
}

func TestDateTimeEqualityAcrossZones(t *testing.T) {
	utc := time.Date(2007, 4, 5, 11, 37, 11, 0, time.UTC)
	mst := utc.In(time.FixedZone("MDT", -6*3600))

	a := New(eventTypeRef)
	a.SetDateTime(dateRef, utc)
	b := New(eventTypeRef)
	b.SetDateTime(dateRef, mst)
	assert.True(t, a.Equal(b))
}

func TestValueFormat(t *testing.T) {
	e := New(eventTypeRef)
	e.SetDateTime(dateRef, time.Date(2008, 1, 10, 12, 31, 0, 0, time.UTC))
	v, ok := e.Get(dateRef)
	require.True(t, ok)
	assert.Equal(t, "10/Jan/2008:12:31:00", v.Format("02/Jan/2006:15:04:05"))
}
