// Package engine provides the reaction engine: the runtime that owns the
// reactor registry and routes events between reactors via the shared
// scheduler. Reactors never call each other directly; every delivery is a
// posted task, which keeps cyclic graphs stack-safe and gives the scheduler
// a natural fairness point.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/database"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/metric"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/scheduler"
	"github.com/vincentyang1210/pion/vocab"
)

// Engine routes events between reactors and owns their lifecycle.
type Engine struct {
	logger    *slog.Logger
	sched     *scheduler.Scheduler
	loader    *plugin.Loader
	codecs    *codec.Factory
	databases *database.Manager
	vocabMgr  *vocab.Manager
	reactors  *plugin.Registry[reactor.Reactor]
	metrics   *engineMetrics

	mu      sync.RWMutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDatabaseManager wires the shared database manager used by storage
// reactors.
func WithDatabaseManager(dbs *database.Manager) Option {
	return func(e *Engine) { e.databases = dbs }
}

// WithMetricsRegistry registers engine metrics; a nil registry disables
// them.
func WithMetricsRegistry(registry *metric.Registry) Option {
	return func(e *Engine) {
		m, err := newEngineMetrics(registry)
		if err != nil {
			e.logger.Error("failed to initialize engine metrics", "error", err)
			return
		}
		e.metrics = m
	}
}

// New creates a reaction engine. The engine registers itself as a
// vocabulary observer so reactors see term changes.
func New(
	logger *slog.Logger,
	sched *scheduler.Scheduler,
	loader *plugin.Loader,
	codecs *codec.Factory,
	vocabMgr *vocab.Manager,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:   logger,
		sched:    sched,
		loader:   loader,
		codecs:   codecs,
		vocabMgr: vocabMgr,
		reactors: plugin.NewRegistry[reactor.Reactor](),
	}
	for _, opt := range opts {
		opt(e)
	}
	vocabMgr.RegisterObserver(e)
	return e
}

// Close deregisters the engine from the vocabulary manager.
func (e *Engine) Close() {
	e.vocabMgr.UnregisterObserver(e)
}

// AddReactor creates and configures a reactor from an XML document,
// returning its id. If the engine is running, the reactor is started.
func (e *Engine) AddReactor(doc []byte) (string, error) {
	cfg, err := reactor.ParseConfig(doc)
	if err != nil {
		return "", err
	}
	if cfg.Plugin == "" {
		return "", errors.WrapInvalid(errors.ErrMissingConfig,
			"Engine", "AddReactor", "Plugin element check")
	}
	entry, err := e.loader.Resolve(cfg.Plugin)
	if err != nil {
		return "", err
	}
	r, ok := entry.Create().(reactor.Reactor)
	if !ok {
		return "", errors.WrapInvalid(
			fmt.Errorf("plugin %q does not implement the reactor contract", cfg.Plugin),
			"Engine", "AddReactor", "contract check")
	}
	if err := r.SetConfig(e.vocabMgr.Vocabulary(), cfg); err != nil {
		return "", err
	}

	id, err := e.reactors.Add("", r)
	if err != nil {
		return "", err
	}
	r.Bind(id, e, reactor.Dependencies{
		Logger:     e.logger.With("reactor", id),
		Codecs:     e.codecs,
		Databases:  e.databases,
		Vocabulary: e.vocabMgr,
	})

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if running {
		if err := r.Start(); err != nil {
			_ = e.reactors.Remove(id)
			return "", err
		}
	}
	e.logger.Info("reactor added", "id", id, "plugin", cfg.Plugin, "name", cfg.Name)
	return id, nil
}

// RemoveReactor stops a reactor and drops it from the registry. Deliveries
// already posted for it become no-ops.
func (e *Engine) RemoveReactor(id string) error {
	r, err := e.getReactor(id)
	if err != nil {
		return err
	}
	if r.Running() {
		if err := r.Stop(); err != nil {
			return err
		}
	}
	return e.reactors.Remove(id)
}

// SetReactorConfig reconfigures a reactor. The reactor is stopped for the
// update and restarted afterwards so event dispatch never observes a
// half-applied config.
func (e *Engine) SetReactorConfig(id string, doc []byte) error {
	cfg, err := reactor.ParseConfig(doc)
	if err != nil {
		return err
	}
	r, err := e.getReactor(id)
	if err != nil {
		return err
	}

	wasRunning := r.Running()
	if wasRunning {
		if err := r.Stop(); err != nil {
			return err
		}
	}
	if err := r.SetConfig(e.vocabMgr.Vocabulary(), cfg); err != nil {
		return err
	}
	if wasRunning {
		return r.Start()
	}
	return nil
}

// AddConnection declares a downstream edge from one reactor to another.
func (e *Engine) AddConnection(from, to string) error {
	r, err := e.getReactor(from)
	if err != nil {
		return err
	}
	if !e.reactors.Has(to) {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("reactor %q: %w", to, errors.ErrReactorNotFound),
			"Engine", "AddConnection", "target lookup")
	}
	return r.AddConnection(to)
}

// RemoveConnection drops a downstream edge.
func (e *Engine) RemoveConnection(from, to string) error {
	r, err := e.getReactor(from)
	if err != nil {
		return err
	}
	return r.RemoveConnection(to)
}

// Send enqueues delivery of an event to a reactor. At-most-once: if the
// reactor is removed between the post and the task running, the task is a
// no-op. Sends on a stopped engine are silently dropped so in-flight work
// can drain during Stop.
func (e *Engine) Send(reactorID string, ev *event.Event) error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil
	}

	err := e.sched.Post(func() {
		r, err := e.reactors.Get(reactorID)
		if err != nil {
			// removed while the task was queued; expected race
			return
		}
		e.dispatch(reactorID, r, ev)
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.dropped.Inc()
		}
		return errors.Wrap(err, "Engine", "Send", "task post")
	}
	if e.metrics != nil {
		e.metrics.routed.Inc()
	}
	return nil
}

// Deliver implements reactor.Deliverer; reactor bases call it for each
// downstream edge.
func (e *Engine) Deliver(reactorID string, ev *event.Event) error {
	return e.Send(reactorID, ev)
}

// dispatch runs a reactor's Process on a worker, containing failures at
// the engine boundary.
func (e *Engine) dispatch(id string, r reactor.Reactor, ev *event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errors.WrapKind(errors.KindInternal,
				fmt.Errorf("reactor panic: %v", rec),
				"Engine", "dispatch", "process call")
			r.RecordError(err)
			e.logger.Error("reactor panicked", "reactor", id, "panic", rec)
		}
	}()
	if err := r.Process(ev); err != nil {
		r.RecordError(err)
		e.logger.Error("reactor failed to process event",
			"reactor", id, "kind", errors.Classify(err).String(), "error", err)
	}
}

// Start transitions every reactor through its start, in no guaranteed
// order, then enables routing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrAlreadyRunning,
			"Engine", "Start", "lifecycle check")
	}

	var failed error
	e.reactors.Each(func(id string, r reactor.Reactor) bool {
		if r.Running() {
			return true
		}
		if err := r.Start(); err != nil {
			failed = errors.Wrap(err, "Engine", "Start", fmt.Sprintf("reactor %s start", id))
			return false
		}
		return true
	})
	if failed != nil {
		return failed
	}
	e.running = true
	if e.metrics != nil {
		e.metrics.activeReactors.Set(float64(e.reactors.Len()))
	}
	return nil
}

// Stop disables routing, drains in-flight deliveries, then stops every
// reactor. When Stop returns no further Process callbacks occur.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"Engine", "Stop", "lifecycle check")
	}
	e.running = false
	e.mu.Unlock()

	// queued deliveries run to completion; new sends are dropped above
	e.sched.Quiesce()

	var failed error
	e.reactors.Each(func(id string, r reactor.Reactor) bool {
		if !r.Running() {
			return true
		}
		if err := r.Stop(); err != nil && failed == nil {
			failed = errors.Wrap(err, "Engine", "Stop", fmt.Sprintf("reactor %s stop", id))
		}
		return true
	})
	return failed
}

// Running reports whether the engine is routing events.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ClearStats resets the counters of every reactor.
func (e *Engine) ClearStats() {
	e.reactors.Each(func(_ string, r reactor.Reactor) bool {
		r.ClearStats()
		return true
	})
}

// ClearReactorStats resets the counters of one reactor.
func (e *Engine) ClearReactorStats(id string) error {
	r, err := e.getReactor(id)
	if err != nil {
		return err
	}
	r.ClearStats()
	return nil
}

// UpdateCodecs notifies every reactor to refresh its codec references.
func (e *Engine) UpdateCodecs() error {
	var failed error
	e.reactors.Each(func(id string, r reactor.Reactor) bool {
		if err := r.UpdateCodecs(); err != nil && failed == nil {
			failed = errors.Wrap(err, "Engine", "UpdateCodecs",
				fmt.Sprintf("reactor %s refresh", id))
		}
		return true
	})
	return failed
}

// UpdateDatabases refreshes the shared database handles and notifies every
// reactor to re-resolve them.
func (e *Engine) UpdateDatabases() error {
	if e.databases != nil {
		if err := e.databases.Refresh(); err != nil {
			return err
		}
	}
	var failed error
	e.reactors.Each(func(id string, r reactor.Reactor) bool {
		if err := r.UpdateDatabases(); err != nil && failed == nil {
			failed = errors.Wrap(err, "Engine", "UpdateDatabases",
				fmt.Sprintf("reactor %s refresh", id))
		}
		return true
	})
	return failed
}

// UpdateVocabulary fans the new snapshot out to every reactor. Implements
// vocab.Observer.
func (e *Engine) UpdateVocabulary(v *vocab.Vocabulary) error {
	var failed error
	e.reactors.Each(func(id string, r reactor.Reactor) bool {
		if err := r.UpdateVocabulary(v); err != nil && failed == nil {
			failed = errors.Wrap(err, "Engine", "UpdateVocabulary",
				fmt.Sprintf("reactor %s refresh", id))
		}
		return true
	})
	return failed
}

// GetReactor returns the reactor stored under id.
func (e *Engine) GetReactor(id string) (reactor.Reactor, error) {
	return e.getReactor(id)
}

// GetEventsIn returns a reactor's consumed-event counter.
func (e *Engine) GetEventsIn(id string) (uint64, error) {
	r, err := e.getReactor(id)
	if err != nil {
		return 0, err
	}
	return r.EventsIn(), nil
}

// GetEventsOut returns a reactor's delivered-event counter.
func (e *Engine) GetEventsOut(id string) (uint64, error) {
	r, err := e.getReactor(id)
	if err != nil {
		return 0, err
	}
	return r.EventsOut(), nil
}

// GetTotalOperations sums consumed events across all reactors.
func (e *Engine) GetTotalOperations() uint64 {
	return e.reactors.Aggregate(func(r reactor.Reactor) uint64 {
		return r.EventsIn()
	})
}

// ReactorIDs lists the registered reactor ids.
func (e *Engine) ReactorIDs() []string {
	return e.reactors.IDs()
}

func (e *Engine) getReactor(id string) (reactor.Reactor, error) {
	r, err := e.reactors.Get(id)
	if err != nil {
		return nil, errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("reactor %q: %w", id, errors.ErrReactorNotFound),
			"Engine", "getReactor", "id lookup")
	}
	return r, nil
}

var _ reactor.Deliverer = (*Engine)(nil)
var _ vocab.Observer = (*Engine)(nil)
