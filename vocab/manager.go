package vocab

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vincentyang1210/pion/errors"
)

// Observer is notified with a new vocabulary snapshot after every mutation.
// Observers must complete the callback before they process further events;
// an observer that references a removed term reports ErrTermNoLongerDefined.
type Observer interface {
	UpdateVocabulary(v *Vocabulary) error
}

// Manager owns the mutable term catalog. Mutations run under a write lock
// against a copy-on-write snapshot; observer callbacks fire after the lock
// is released, in no guaranteed order.
type Manager struct {
	mu         sync.RWMutex
	current    *Vocabulary
	namespaces map[string]bool // namespace -> locked
	observers  map[Observer]struct{}
	logger     *slog.Logger
}

// NewManager creates an empty vocabulary manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		current:    newVocabulary(),
		namespaces: make(map[string]bool),
		observers:  make(map[Observer]struct{}),
		logger:     logger,
	}
}

// Vocabulary returns the current snapshot. The returned value is immutable.
func (m *Manager) Vocabulary() *Vocabulary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AddNamespace registers a namespace. Namespaces start unlocked so their
// initial terms can be loaded, and are typically locked afterwards.
func (m *Manager) AddNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.namespaces[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("namespace %q: %w", name, errors.ErrDuplicateID),
			"VocabularyManager", "AddNamespace", "duplicate namespace check")
	}
	m.namespaces[name] = false
	return nil
}

// SetLocked changes the lock state of a namespace.
func (m *Manager) SetLocked(namespace string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.namespaces[namespace]; !exists {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("namespace %q: %w", namespace, errors.ErrNotFound),
			"VocabularyManager", "SetLocked", "namespace lookup")
	}
	m.namespaces[namespace] = locked
	return nil
}

// Locked reports the lock state of a namespace. Unknown namespaces are
// reported as locked.
func (m *Manager) Locked(namespace string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locked, exists := m.namespaces[namespace]
	return !exists || locked
}

// AddTerm adds a term to its namespace and returns the assigned reference.
func (m *Manager) AddTerm(t Term) (TermRef, error) {
	ns := t.Namespace()
	m.mu.Lock()
	if err := m.checkUnlocked(ns); err != nil {
		m.mu.Unlock()
		return UndefinedTermRef, errors.Wrap(err, "VocabularyManager", "AddTerm", "namespace check")
	}
	next := m.current.clone()
	ref, err := next.addTerm(t)
	if err != nil {
		m.mu.Unlock()
		return UndefinedTermRef, err
	}
	m.current = next
	m.mu.Unlock()

	m.notify(next)
	return ref, nil
}

// UpdateTerm replaces an existing term, keeping its reference stable.
func (m *Manager) UpdateTerm(t Term) error {
	ns := t.Namespace()
	m.mu.Lock()
	if err := m.checkUnlocked(ns); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "VocabularyManager", "UpdateTerm", "namespace check")
	}
	next := m.current.clone()
	if err := next.updateTerm(t); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = next
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// RemoveTerm removes a term. Codecs and reactors still referencing the term
// learn about the removal through the observer callback and become invalid.
func (m *Manager) RemoveTerm(urn string) error {
	ns := NamespaceOf(urn)
	m.mu.Lock()
	if err := m.checkUnlocked(ns); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "VocabularyManager", "RemoveTerm", "namespace check")
	}
	next := m.current.clone()
	if err := next.removeTerm(urn); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = next
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// RegisterObserver subscribes an observer to vocabulary changes. Observers
// register at construction and deregister on destruction.
func (m *Manager) RegisterObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[o] = struct{}{}
}

// UnregisterObserver removes an observer.
func (m *Manager) UnregisterObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, o)
}

// checkUnlocked must be called with the write lock held.
func (m *Manager) checkUnlocked(namespace string) error {
	locked, exists := m.namespaces[namespace]
	if !exists {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("namespace %q: %w", namespace, errors.ErrNotFound),
			"VocabularyManager", "checkUnlocked", "namespace lookup")
	}
	if locked {
		return fmt.Errorf("namespace %q: %w", namespace, errors.ErrNamespaceLocked)
	}
	return nil
}

// notify fans the new snapshot out to observers outside the write critical
// section. Observer failures are logged; the mutation itself has already
// been applied.
func (m *Manager) notify(v *Vocabulary) {
	m.mu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for o := range m.observers {
		observers = append(observers, o)
	}
	m.mu.RUnlock()

	var errs []error
	for _, o := range observers {
		if err := o.UpdateVocabulary(v); err != nil {
			m.logger.Warn("vocabulary observer rejected update", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		// Observer failures do not roll back the mutation; the failing
		// observer has marked itself invalid.
		_ = stderrors.Join(errs...)
	}
}
