package server

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vincentyang1210/pion/errors"
)

// Service handles HTTP requests for a path prefix. Handle must call
// Finish on the writer before returning.
type Service interface {
	Handle(req *Request, w ResponseWriter)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(req *Request, w ResponseWriter)

// Handle calls the function.
func (f ServiceFunc) Handle(req *Request, w ResponseWriter) { f(req, w) }

type dispatchEntry struct {
	prefix  string
	service Service
}

// dispatcher maps path prefixes to services. Registration takes a write
// lock and publishes a new snapshot; lookups read the snapshot without
// locking.
type dispatcher struct {
	mu      sync.Mutex
	entries map[string]Service
	table   atomic.Pointer[[]dispatchEntry]
}

func newDispatcher() *dispatcher {
	d := &dispatcher{entries: make(map[string]Service)}
	d.table.Store(&[]dispatchEntry{})
	return d
}

// add registers a service under a path prefix.
func (d *dispatcher) add(prefix string, svc Service) error {
	if prefix == "" || !strings.HasPrefix(prefix, "/") || svc == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Dispatcher", "add", "service registration check")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[prefix]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateID,
			"Dispatcher", "add", "duplicate prefix check")
	}
	d.entries[prefix] = svc
	d.publish()
	return nil
}

// remove drops a registered prefix.
func (d *dispatcher) remove(prefix string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[prefix]; !exists {
		return errors.WrapKind(errors.KindNotFound, errors.ErrNotFound,
			"Dispatcher", "remove", "prefix lookup")
	}
	delete(d.entries, prefix)
	d.publish()
	return nil
}

// publish rebuilds the snapshot, longest prefixes first.
func (d *dispatcher) publish() {
	table := make([]dispatchEntry, 0, len(d.entries))
	for prefix, svc := range d.entries {
		table = append(table, dispatchEntry{prefix: prefix, service: svc})
	}
	sort.Slice(table, func(i, j int) bool {
		return len(table[i].prefix) > len(table[j].prefix)
	})
	d.table.Store(&table)
}

// lookup returns the service with the longest prefix matching the path.
func (d *dispatcher) lookup(path string) (Service, bool) {
	for _, e := range *d.table.Load() {
		if strings.HasPrefix(path, e.prefix) {
			return e.service, true
		}
	}
	return nil, false
}
