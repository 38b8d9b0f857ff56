package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// Base carries the state shared by all reactors: identity, configuration,
// lifecycle flag, statistics and the downstream edge list. Statistics are
// per-counter atomic; snapshots may see inconsistent pairs but never torn
// values.
type Base struct {
	kind Kind

	mu         sync.RWMutex
	id         string
	name       string
	comment    string
	downstream []string
	deliverer  Deliverer
	deps       Dependencies
	lastErr    error

	running   atomic.Bool
	eventsIn  atomic.Uint64
	eventsOut atomic.Uint64
}

// NewBase creates the shared reactor state for the given kind.
func NewBase(kind Kind) Base {
	return Base{kind: kind}
}

func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

func (b *Base) Comment() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.comment
}

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Running() bool { return b.running.Load() }

func (b *Base) EventsIn() uint64 { return b.eventsIn.Load() }

func (b *Base) EventsOut() uint64 { return b.eventsOut.Load() }

func (b *Base) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Downstream returns a copy of the configured downstream reactor ids.
func (b *Base) Downstream() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.downstream))
	copy(out, b.downstream)
	return out
}

// Bind wires the reactor's id, dependencies and delivery path.
func (b *Base) Bind(id string, d Deliverer, deps Dependencies) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
	b.deliverer = d
	b.deps = deps
}

// Deps returns the shared services bound by the engine.
func (b *Base) Deps() Dependencies {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deps
}

// SetConfig applies the common configuration elements. Concrete reactors
// call this first, then decode their own children from cfg.Doc.
func (b *Base) SetConfig(_ *vocab.Vocabulary, cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = cfg.Name
	b.comment = cfg.Comment
	b.downstream = make([]string, 0, len(cfg.Connections))
	for _, conn := range cfg.Connections {
		if conn.To == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"Reactor", "SetConfig", "Connection to attribute check")
		}
		b.downstream = append(b.downstream, conn.To)
	}
	return nil
}

// AddConnection appends a downstream edge at runtime.
func (b *Base) AddConnection(to string) error {
	if to == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Reactor", "AddConnection", "target id check")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.downstream {
		if id == to {
			return errors.WrapInvalid(errors.ErrDuplicateID,
				"Reactor", "AddConnection", "duplicate edge check")
		}
	}
	b.downstream = append(b.downstream, to)
	return nil
}

// RemoveConnection drops a downstream edge.
func (b *Base) RemoveConnection(to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	// copy so Deliver can keep iterating a previously read edge list
	out := make([]string, 0, len(b.downstream))
	for _, id := range b.downstream {
		if id == to {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		return errors.WrapKind(errors.KindNotFound, errors.ErrReactorNotFound,
			"Reactor", "RemoveConnection", "edge lookup")
	}
	b.downstream = out
	return nil
}

// Start flips the running flag. Reactors with background work wrap this.
func (b *Base) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrAlreadyRunning,
			"Reactor", "Start", "lifecycle check")
	}
	return nil
}

// Stop clears the running flag.
func (b *Base) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"Reactor", "Stop", "lifecycle check")
	}
	return nil
}

// Process on the base is terminal: it counts the event and forwards it
// downstream. Processing reactors typically transform first and then call
// RecordIn and Deliver themselves.
func (b *Base) Process(e *event.Event) error {
	b.RecordIn()
	return b.Deliver(e)
}

// UpdateVocabulary is a no-op for reactors without term references.
func (b *Base) UpdateVocabulary(*vocab.Vocabulary) error { return nil }

// UpdateCodecs is a no-op for reactors without codec references.
func (b *Base) UpdateCodecs() error { return nil }

// UpdateDatabases is a no-op for reactors without database handles.
func (b *Base) UpdateDatabases() error { return nil }

// ClearStats atomically resets the event counters and the last error.
func (b *Base) ClearStats() {
	b.eventsIn.Store(0)
	b.eventsOut.Store(0)
	b.mu.Lock()
	b.lastErr = nil
	b.mu.Unlock()
}

// RecordIn counts one consumed event.
func (b *Base) RecordIn() { b.eventsIn.Add(1) }

// RecordError stores the reactor's last processing error.
func (b *Base) RecordError(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// Deliver forwards an event to every downstream reactor through the bound
// deliverer, counting one outbound event per edge. An unbound or edgeless
// reactor delivers nothing.
func (b *Base) Deliver(e *event.Event) error {
	b.mu.RLock()
	d := b.deliverer
	targets := b.downstream
	b.mu.RUnlock()

	if d == nil {
		return nil
	}
	for _, id := range targets {
		if err := d.Deliver(id, e); err != nil {
			return err
		}
		b.eventsOut.Add(1)
	}
	return nil
}
