// Package stats exposes platform counters as a JSON service.
package stats

import (
	"encoding/json"

	"github.com/vincentyang1210/pion/scheduler"
	"github.com/vincentyang1210/pion/server"
)

// EngineStats is the slice of the reaction engine the service reads.
type EngineStats interface {
	Running() bool
	ReactorIDs() []string
	GetEventsIn(id string) (uint64, error)
	GetEventsOut(id string) (uint64, error)
	GetTotalOperations() uint64
}

// SchedulerStats is the slice of the scheduler the service reads.
type SchedulerStats interface {
	Stats() scheduler.Stats
}

type reactorStats struct {
	ID        string `json:"id"`
	EventsIn  uint64 `json:"eventsIn"`
	EventsOut uint64 `json:"eventsOut"`
}

type snapshot struct {
	Running         bool            `json:"running"`
	TotalOperations uint64          `json:"totalOperations"`
	Reactors        []reactorStats  `json:"reactors"`
	Scheduler       scheduler.Stats `json:"scheduler"`
}

// Service renders engine and scheduler counters as JSON.
type Service struct {
	engine EngineStats
	sched  SchedulerStats
}

// New creates the service.
func New(engine EngineStats, sched SchedulerStats) *Service {
	return &Service{engine: engine, sched: sched}
}

// Handle writes the current counter snapshot.
func (s *Service) Handle(_ *server.Request, w server.ResponseWriter) {
	snap := snapshot{Reactors: []reactorStats{}}
	if s.engine != nil {
		snap.Running = s.engine.Running()
		snap.TotalOperations = s.engine.GetTotalOperations()
		for _, id := range s.engine.ReactorIDs() {
			in, err := s.engine.GetEventsIn(id)
			if err != nil {
				// reactor removed between listing and reading; skip it
				continue
			}
			out, _ := s.engine.GetEventsOut(id)
			snap.Reactors = append(snap.Reactors, reactorStats{
				ID: id, EventsIn: in, EventsOut: out,
			})
		}
	}
	if s.sched != nil {
		snap.Scheduler = s.sched.Stats()
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		w.SetStatus(500)
		_ = w.Finish()
		return
	}
	w.SetStatus(200)
	w.SetHeader("Content-Type", "text/json")
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
	_ = w.Finish()
}

var _ server.Service = (*Service)(nil)
