package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/scheduler"
	"github.com/vincentyang1210/pion/vocab"
)

// passthrough forwards every event downstream unchanged.
type passthrough struct {
	reactor.Base
}

func newPassthrough() *passthrough {
	return &passthrough{Base: reactor.NewBase(reactor.Processing)}
}

// failing rejects every event before counting it.
type failing struct {
	reactor.Base
}

func newFailing() *failing {
	return &failing{Base: reactor.NewBase(reactor.Processing)}
}

func (f *failing) Process(*event.Event) error {
	return errors.WrapMalformed(errors.ErrMalformed, "failing", "Process", "always fails")
}

type testRig struct {
	sched  *scheduler.Scheduler
	engine *Engine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	sched := scheduler.New(scheduler.WithWorkers(2))
	require.NoError(t, sched.Startup(context.Background()))
	t.Cleanup(func() { _ = sched.Shutdown(5 * time.Second) })

	vocabMgr := vocab.NewManager(nil)
	loader := plugin.NewLoader(nil)
	require.NoError(t, loader.RegisterBuiltin("Passthrough", func() any { return newPassthrough() }))
	require.NoError(t, loader.RegisterBuiltin("Failing", func() any { return newFailing() }))

	codecs := codec.NewFactory(nil, loader, vocabMgr)
	eng := New(nil, sched, loader, codecs, vocabMgr)
	t.Cleanup(eng.Close)

	return &testRig{sched: sched, engine: eng}
}

func (rig *testRig) addReactor(t *testing.T, pluginName string) string {
	t.Helper()
	id, err := rig.engine.AddReactor([]byte(
		"<Reactor><Plugin>" + pluginName + "</Plugin></Reactor>"))
	require.NoError(t, err)
	return id
}

func TestChainDeliveryCounts(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	a := rig.addReactor(t, "Passthrough")
	b := rig.addReactor(t, "Passthrough")
	c := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.AddConnection(a, b))
	require.NoError(t, eng.AddConnection(b, c))

	require.NoError(t, eng.Start())
	require.NoError(t, eng.Send(a, event.New(0)))
	rig.sched.Quiesce()

	for _, id := range []string{a, b, c} {
		in, err := eng.GetEventsIn(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), in, "events_in(%s)", id)
	}
	for id, want := range map[string]uint64{a: 1, b: 1, c: 0} {
		out, err := eng.GetEventsOut(id)
		require.NoError(t, err)
		assert.Equal(t, want, out, "events_out(%s)", id)
	}
	assert.Equal(t, uint64(3), eng.GetTotalOperations())
}

func TestSendToRemovedReactorIsNoOp(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	a := rig.addReactor(t, "Passthrough")
	b := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.AddConnection(a, b))
	require.NoError(t, eng.Start())

	require.NoError(t, eng.RemoveReactor(b))
	require.NoError(t, eng.Send(a, event.New(0)))
	rig.sched.Quiesce()

	// A processed the event; the delivery to the removed B was dropped
	// without error and without counting anywhere.
	in, err := eng.GetEventsIn(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), in)
	assert.Equal(t, uint64(1), eng.GetTotalOperations())

	// sending straight to a removed id is also a silent no-op
	assert.NoError(t, eng.Send(b, event.New(0)))
	rig.sched.Quiesce()
}

func TestStopQuiescesDelivery(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	a := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.Start())

	for i := 0; i < 20; i++ {
		require.NoError(t, eng.Send(a, event.New(0)))
	}
	require.NoError(t, eng.Stop())

	in, err := eng.GetEventsIn(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), in, "queued deliveries must drain before Stop returns")

	// sends after stop are dropped
	require.NoError(t, eng.Send(a, event.New(0)))
	rig.sched.Quiesce()
	in, err = eng.GetEventsIn(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), in)

	r, err := eng.GetReactor(a)
	require.NoError(t, err)
	assert.False(t, r.Running())
}

func TestFailingReactorDropsEvent(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	f := rig.addReactor(t, "Failing")
	down := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.AddConnection(f, down))
	require.NoError(t, eng.Start())

	require.NoError(t, eng.Send(f, event.New(0)))
	rig.sched.Quiesce()

	in, err := eng.GetEventsIn(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), in, "failed events must not be counted")

	downIn, err := eng.GetEventsIn(down)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), downIn, "failed events must not be forwarded")

	r, err := eng.GetReactor(f)
	require.NoError(t, err)
	assert.ErrorIs(t, r.LastError(), errors.ErrMalformed)

	// the reactor remains running and stats can be reset
	assert.True(t, r.Running())
	require.NoError(t, eng.ClearReactorStats(f))
	assert.NoError(t, r.LastError())
}

func TestAddReactorErrors(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.AddReactor([]byte("<Reactor><Plugin>NoSuch</Plugin></Reactor>"))
	assert.ErrorIs(t, err, errors.ErrPluginNotFound)

	_, err = rig.engine.AddReactor([]byte("<Reactor></Reactor>"))
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	assert.ErrorIs(t, rig.engine.RemoveReactor("nope"), errors.ErrReactorNotFound)
	_, err = rig.engine.GetEventsIn("nope")
	assert.ErrorIs(t, err, errors.ErrReactorNotFound)
}

func TestConnectionValidation(t *testing.T) {
	rig := newTestRig(t)
	a := rig.addReactor(t, "Passthrough")

	assert.ErrorIs(t, rig.engine.AddConnection(a, "nope"), errors.ErrReactorNotFound)
	assert.ErrorIs(t, rig.engine.AddConnection("nope", a), errors.ErrReactorNotFound)
	assert.ErrorIs(t, rig.engine.RemoveConnection(a, "nope"), errors.ErrReactorNotFound)
}

func TestSetReactorConfigRestarts(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	a := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.Start())

	require.NoError(t, eng.SetReactorConfig(a,
		[]byte(`<Reactor><Plugin>Passthrough</Plugin><Name>renamed</Name></Reactor>`)))

	r, err := eng.GetReactor(a)
	require.NoError(t, err)
	assert.Equal(t, "renamed", r.Name())
	assert.True(t, r.Running())
}

func TestClearStats(t *testing.T) {
	rig := newTestRig(t)
	eng := rig.engine

	a := rig.addReactor(t, "Passthrough")
	require.NoError(t, eng.Start())
	require.NoError(t, eng.Send(a, event.New(0)))
	rig.sched.Quiesce()

	eng.ClearStats()
	assert.Equal(t, uint64(0), eng.GetTotalOperations())
}
