package stats

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/scheduler"
	"github.com/vincentyang1210/pion/server"
)

type recorder struct {
	status   int
	headers  map[string]string
	body     bytes.Buffer
	finished bool
}

func newRecorder() *recorder {
	return &recorder{status: 200, headers: make(map[string]string)}
}

func (r *recorder) SetStatus(code int)           { r.status = code }
func (r *recorder) SetHeader(name, value string) { r.headers[name] = value }
func (r *recorder) Write(p []byte) (int, error)  { return r.body.Write(p) }
func (r *recorder) Finish() error                { r.finished = true; return nil }

var _ server.ResponseWriter = (*recorder)(nil)

type fakeEngine struct {
	running bool
	in      map[string]uint64
	out     map[string]uint64
	ids     []string
}

func (f *fakeEngine) Running() bool        { return f.running }
func (f *fakeEngine) ReactorIDs() []string { return f.ids }

func (f *fakeEngine) GetEventsIn(id string) (uint64, error) {
	n, ok := f.in[id]
	if !ok {
		return 0, errors.ErrReactorNotFound
	}
	return n, nil
}

func (f *fakeEngine) GetEventsOut(id string) (uint64, error) {
	return f.out[id], nil
}

func (f *fakeEngine) GetTotalOperations() uint64 {
	var total uint64
	for _, n := range f.in {
		total += n
	}
	return total
}

type fakeScheduler struct{ stats scheduler.Stats }

func (f *fakeScheduler) Stats() scheduler.Stats { return f.stats }

func TestHandleRendersCounters(t *testing.T) {
	eng := &fakeEngine{
		running: true,
		ids:     []string{"r1", "r2"},
		in:      map[string]uint64{"r1": 3, "r2": 5},
		out:     map[string]uint64{"r1": 3, "r2": 0},
	}
	sched := &fakeScheduler{stats: scheduler.Stats{Workers: 4, Posted: 8, Executed: 8}}

	w := newRecorder()
	New(eng, sched).Handle(&server.Request{Method: "GET", Path: "/stats"}, w)

	require.True(t, w.finished)
	assert.Equal(t, 200, w.status)
	assert.Equal(t, "text/json", w.headers["Content-Type"])

	var snap struct {
		Running         bool   `json:"running"`
		TotalOperations uint64 `json:"totalOperations"`
		Reactors        []struct {
			ID        string `json:"id"`
			EventsIn  uint64 `json:"eventsIn"`
			EventsOut uint64 `json:"eventsOut"`
		} `json:"reactors"`
		Scheduler scheduler.Stats `json:"scheduler"`
	}
	require.NoError(t, json.Unmarshal(w.body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, uint64(8), snap.TotalOperations)
	require.Len(t, snap.Reactors, 2)
	assert.Equal(t, 4, snap.Scheduler.Workers)
}

func TestHandleSkipsRemovedReactor(t *testing.T) {
	eng := &fakeEngine{
		ids: []string{"gone", "r1"},
		in:  map[string]uint64{"r1": 2},
		out: map[string]uint64{"r1": 2},
	}

	w := newRecorder()
	New(eng, &fakeScheduler{}).Handle(&server.Request{Method: "GET", Path: "/stats"}, w)

	var snap struct {
		Reactors []struct {
			ID string `json:"id"`
		} `json:"reactors"`
	}
	require.NoError(t, json.Unmarshal(w.body.Bytes(), &snap))
	require.Len(t, snap.Reactors, 1)
	assert.Equal(t, "r1", snap.Reactors[0].ID)
}

func TestHandleWithNilSources(t *testing.T) {
	w := newRecorder()
	New(nil, nil).Handle(&server.Request{Method: "GET", Path: "/stats"}, w)

	require.True(t, w.finished)
	assert.Equal(t, 200, w.status)
	assert.Contains(t, w.body.String(), `"running": false`)
}
