package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

const testNamespace = "urn:vocab:clickstream"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	require.NoError(t, m.AddNamespace(testNamespace))
	return m
}

func TestAddAndFindTerm(t *testing.T) {
	m := newTestManager(t)

	ref, err := m.AddTerm(Term{ID: testNamespace + "#bytes", Type: TypeUInt})
	require.NoError(t, err)
	assert.NotEqual(t, UndefinedTermRef, ref)

	v := m.Vocabulary()
	found, ok := v.FindTerm(testNamespace + "#bytes")
	require.True(t, ok)
	assert.Equal(t, ref, found)

	term, ok := v.Term(ref)
	require.True(t, ok)
	assert.Equal(t, TypeUInt, term.Type)
	assert.Equal(t, testNamespace, term.Namespace())
}

func TestFindUnknownTerm(t *testing.T) {
	m := newTestManager(t)
	ref, ok := m.Vocabulary().FindTerm(testNamespace + "#nope")
	assert.False(t, ok)
	assert.Equal(t, UndefinedTermRef, ref)
}

func TestDuplicateTermRejected(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddTerm(Term{ID: testNamespace + "#status", Type: TypeUInt})
	require.NoError(t, err)
	_, err = m.AddTerm(Term{ID: testNamespace + "#status", Type: TypeUInt})
	assert.ErrorIs(t, err, errors.ErrDuplicateID)
}

func TestLockedNamespaceRejectsMutation(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddTerm(Term{ID: testNamespace + "#date", Type: TypeDateTime})
	require.NoError(t, err)

	require.NoError(t, m.SetLocked(testNamespace, true))
	_, err = m.AddTerm(Term{ID: testNamespace + "#request", Type: TypeString})
	assert.ErrorIs(t, err, errors.ErrNamespaceLocked)
	err = m.RemoveTerm(testNamespace + "#date")
	assert.ErrorIs(t, err, errors.ErrNamespaceLocked)

	// Unlocking makes the namespace editable again.
	require.NoError(t, m.SetLocked(testNamespace, false))
	require.NoError(t, m.RemoveTerm(testNamespace+"#date"))
}

func TestRemoveKeepsReferencesStable(t *testing.T) {
	m := newTestManager(t)
	first, err := m.AddTerm(Term{ID: testNamespace + "#first", Type: TypeString})
	require.NoError(t, err)
	second, err := m.AddTerm(Term{ID: testNamespace + "#second", Type: TypeString})
	require.NoError(t, err)

	require.NoError(t, m.RemoveTerm(testNamespace+"#first"))

	v := m.Vocabulary()
	_, ok := v.Term(first)
	assert.False(t, ok, "removed term should not resolve")
	term, ok := v.Term(second)
	require.True(t, ok)
	assert.Equal(t, second, term.Ref)
	assert.Equal(t, testNamespace+"#second", term.ID)
}

func TestSnapshotIsolation(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddTerm(Term{ID: testNamespace + "#bytes", Type: TypeUInt})
	require.NoError(t, err)

	before := m.Vocabulary()
	require.NoError(t, m.RemoveTerm(testNamespace+"#bytes"))

	// The earlier snapshot still resolves the term.
	_, ok := before.FindTerm(testNamespace + "#bytes")
	assert.True(t, ok)
	_, ok = m.Vocabulary().FindTerm(testNamespace + "#bytes")
	assert.False(t, ok)
}

type recordingObserver struct {
	calls int
	last  *Vocabulary
	err   error
}

func (r *recordingObserver) UpdateVocabulary(v *Vocabulary) error {
	r.calls++
	r.last = v
	return r.err
}

func TestObserverNotified(t *testing.T) {
	m := newTestManager(t)
	obs := &recordingObserver{}
	m.RegisterObserver(obs)

	ref, err := m.AddTerm(Term{ID: testNamespace + "#status", Type: TypeUInt})
	require.NoError(t, err)
	assert.Equal(t, 1, obs.calls)
	require.NotNil(t, obs.last)
	_, ok := obs.last.Term(ref)
	assert.True(t, ok)

	m.UnregisterObserver(obs)
	require.NoError(t, m.RemoveTerm(testNamespace+"#status"))
	assert.Equal(t, 1, obs.calls, "deregistered observer must not be called")
}

func TestObserverErrorDoesNotRollBack(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddTerm(Term{ID: testNamespace + "#bytes", Type: TypeUInt})
	require.NoError(t, err)

	obs := &recordingObserver{err: errors.ErrTermNoLongerDefined}
	m.RegisterObserver(obs)

	require.NoError(t, m.RemoveTerm(testNamespace+"#bytes"))
	assert.Equal(t, 1, obs.calls)
	_, ok := m.Vocabulary().FindTerm(testNamespace + "#bytes")
	assert.False(t, ok)
}

func TestParseTermType(t *testing.T) {
	tests := []struct {
		in   string
		want TermType
	}{
		{"string", TypeString},
		{"uint32", TypeUInt},
		{"int", TypeInt},
		{"float", TypeFloat},
		{"double", TypeDouble},
		{"datetime", TypeDateTime},
		{"object", TypeObject},
	}
	for _, tt := range tests {
		got, err := ParseTermType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseTermType("blob")
	assert.Error(t, err)
}
