package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/database"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/vocab"
)

const ns = "urn:vocab:clickstream"

func newHarness(t *testing.T) (*vocab.Manager, *database.Manager) {
	t.Helper()
	m := vocab.NewManager(nil)
	require.NoError(t, m.AddNamespace(ns))
	for _, term := range []vocab.Term{
		{ID: ns + "#remotehost", Type: vocab.TypeString},
		{ID: ns + "#status", Type: vocab.TypeUInt},
	} {
		_, err := m.AddTerm(term)
		require.NoError(t, err)
	}

	dbs := database.NewManager(nil)
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, dbs.Configure("clickstream", dbURL))
	t.Cleanup(func() { _ = dbs.Close() })
	return m, dbs
}

func reactorConfig(t *testing.T) reactor.Config {
	t.Helper()
	cfg, err := reactor.ParseConfig(fmt.Appendf(nil, `<Reactor>
  <Plugin>SQLiteReactor</Plugin>
  <Database>clickstream</Database>
  <Table>requests</Table>
  <Field term="%[1]s#remotehost">remotehost</Field>
  <Field term="%[1]s#status">status</Field>
</Reactor>`, ns))
	require.NoError(t, err)
	return cfg
}

func TestInsertsRows(t *testing.T) {
	m, dbs := newHarness(t)

	r := New()
	require.NoError(t, r.SetConfig(m.Vocabulary(), reactorConfig(t)))
	r.Bind("sql1", nil, reactor.Dependencies{Databases: dbs})
	require.NoError(t, r.Start())

	v := m.Vocabulary()
	hostRef, _ := v.FindTerm(ns + "#remotehost")
	statusRef, _ := v.FindTerm(ns + "#status")

	e := event.New(0)
	e.SetString(hostRef, "10.0.19.111")
	e.SetUInt(statusRef, 404)
	require.NoError(t, r.Process(e))

	// a row missing a field stores NULL
	partial := event.New(0)
	partial.SetUInt(statusRef, 200)
	require.NoError(t, r.Process(partial))
	require.NoError(t, r.Stop())

	db, err := dbs.Database("clickstream")
	require.NoError(t, err)
	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM requests"))
	assert.Equal(t, 2, count)

	var host string
	require.NoError(t, db.Get(&host,
		"SELECT remotehost FROM requests WHERE status = '404'"))
	assert.Equal(t, "10.0.19.111", host)
	assert.Equal(t, uint64(2), r.EventsIn())
}

func TestUnknownDatabaseFailsStart(t *testing.T) {
	m, _ := newHarness(t)

	r := New()
	require.NoError(t, r.SetConfig(m.Vocabulary(), reactorConfig(t)))
	r.Bind("sql1", nil, reactor.Dependencies{Databases: database.NewManager(nil)})
	assert.ErrorIs(t, r.Start(), errors.ErrNotFound)
	assert.False(t, r.Running())
}

func TestConfigValidation(t *testing.T) {
	m, _ := newHarness(t)
	cfg, err := reactor.ParseConfig([]byte(`<Reactor><Plugin>SQLiteReactor</Plugin></Reactor>`))
	require.NoError(t, err)
	r := New()
	assert.ErrorIs(t, r.SetConfig(m.Vocabulary(), cfg), errors.ErrMissingConfig)
}

func TestUpdateDatabasesReconnects(t *testing.T) {
	m, dbs := newHarness(t)

	r := New()
	require.NoError(t, r.SetConfig(m.Vocabulary(), reactorConfig(t)))
	r.Bind("sql1", nil, reactor.Dependencies{Databases: dbs})
	require.NoError(t, r.Start())

	require.NoError(t, dbs.Refresh())
	require.NoError(t, r.UpdateDatabases())

	v := m.Vocabulary()
	statusRef, _ := v.FindTerm(ns + "#status")
	e := event.New(0)
	e.SetUInt(statusRef, 500)
	assert.NoError(t, r.Process(e))
	require.NoError(t, r.Stop())
}
