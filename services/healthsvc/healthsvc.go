// Package healthsvc serves the platform health monitor as JSON.
package healthsvc

import (
	"encoding/json"

	"github.com/vincentyang1210/pion/health"
	"github.com/vincentyang1210/pion/server"
)

type report struct {
	Overall    health.Status   `json:"overall"`
	Subsystems []health.Status `json:"subsystems"`
}

// Service renders the monitor's current view. An unhealthy platform
// answers 500 so load balancers can act on the status code alone.
type Service struct {
	monitor *health.Monitor
	name    string
}

// New creates the service. The name labels the aggregated status.
func New(monitor *health.Monitor, name string) *Service {
	return &Service{monitor: monitor, name: name}
}

// Handle writes the health report.
func (s *Service) Handle(_ *server.Request, w server.ResponseWriter) {
	rep := report{
		Overall:    s.monitor.Overall(s.name),
		Subsystems: s.monitor.All(),
	}

	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		w.SetStatus(500)
		_ = w.Finish()
		return
	}
	if rep.Overall.Level == health.Unhealthy {
		w.SetStatus(500)
	} else {
		w.SetStatus(200)
	}
	w.SetHeader("Content-Type", "text/json")
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
	_ = w.Finish()
}

var _ server.Service = (*Service)(nil)
