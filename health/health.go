// Package health tracks the operational state of platform subsystems.
// Each subsystem reports a three-level status; the monitor aggregates them
// into a platform-wide view served by the health service.
package health

import (
	"sync"
	"time"
)

// Level is a subsystem health level.
type Level string

const (
	// Healthy means the subsystem operates normally.
	Healthy Level = "healthy"
	// Degraded means the subsystem operates with reduced capability.
	Degraded Level = "degraded"
	// Unhealthy means the subsystem is not functioning.
	Unhealthy Level = "unhealthy"
)

// Status is the reported state of one subsystem.
type Status struct {
	Subsystem string    `json:"subsystem"`
	Level     Level     `json:"level"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsHealthy reports whether the status level is Healthy.
func (s Status) IsHealthy() bool { return s.Level == Healthy }

// Aggregate folds subsystem statuses into one: any unhealthy subsystem
// makes the whole unhealthy, any degraded one makes it degraded, and an
// empty set is healthy.
func Aggregate(name string, statuses []Status) Status {
	level := Healthy
	message := "all subsystems healthy"
	for _, s := range statuses {
		switch s.Level {
		case Unhealthy:
			return Status{
				Subsystem: name,
				Level:     Unhealthy,
				Message:   s.Subsystem + ": " + s.Message,
				Timestamp: time.Now(),
			}
		case Degraded:
			level = Degraded
			message = s.Subsystem + ": " + s.Message
		}
	}
	return Status{Subsystem: name, Level: level, Message: message, Timestamp: time.Now()}
}

// Monitor tracks subsystem statuses. All methods are safe for concurrent
// use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records a subsystem status, stamping the current time.
func (m *Monitor) Update(name string, level Level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = Status{
		Subsystem: name,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Get returns the status of one subsystem.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[name]
	return s, ok
}

// All returns a copy of every subsystem status.
func (m *Monitor) All() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	return out
}

// Remove drops a subsystem from monitoring.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// Overall aggregates every tracked subsystem into one platform status.
func (m *Monitor) Overall(name string) Status {
	return Aggregate(name, m.All())
}
