// Package plugin provides the loading and ownership model for the
// platform's extensible object types (codecs, reactors, services). Builtin
// implementations register factories into a Loader at startup; additional
// implementations can be supplied as shared libraries discovered on the
// loader's search path.
package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sync"

	"github.com/vincentyang1210/pion/errors"
)

// Factory creates a new plugin instance.
type Factory func() any

// Destructor releases a plugin instance. Builtin plugins rely on garbage
// collection and register a nil destructor.
type Destructor func(any)

// Entry pairs the create and destroy halves of a resolved plugin type.
type Entry struct {
	Name    string
	Create  Factory
	Destroy Destructor
}

// Loader resolves plugin type names to factories. Builtins take precedence;
// otherwise each search path is probed for <name>.so and the library's
// Create<Name> and Destroy<Name> symbols are resolved. Opened libraries are
// cached for the lifetime of the loader.
type Loader struct {
	mu          sync.RWMutex
	builtins    map[string]Entry
	searchPaths []string
	opened      map[string]Entry
	logger      *slog.Logger
}

// NewLoader creates a loader with the given shared-library search paths.
func NewLoader(logger *slog.Logger, searchPaths ...string) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		builtins:    make(map[string]Entry),
		searchPaths: searchPaths,
		opened:      make(map[string]Entry),
		logger:      logger,
	}
}

// RegisterBuiltin registers a statically linked plugin type. Registering a
// name twice is a configuration error.
func (l *Loader) RegisterBuiltin(name string, create Factory) error {
	if name == "" || create == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Loader", "RegisterBuiltin", "builtin validation")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.builtins[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("plugin type %q already registered", name),
			"Loader", "RegisterBuiltin", "duplicate builtin check")
	}
	l.builtins[name] = Entry{Name: name, Create: create}
	return nil
}

// AddSearchPath appends a directory to the shared-library search path.
func (l *Loader) AddSearchPath(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPaths = append(l.searchPaths, dir)
}

// Resolve returns the factory entry for a plugin type name. It fails with
// ErrPluginNotFound when neither a builtin nor a shared library provides the
// type.
func (l *Loader) Resolve(name string) (Entry, error) {
	l.mu.RLock()
	if e, ok := l.builtins[name]; ok {
		l.mu.RUnlock()
		return e, nil
	}
	if e, ok := l.opened[name]; ok {
		l.mu.RUnlock()
		return e, nil
	}
	paths := make([]string, len(l.searchPaths))
	copy(paths, l.searchPaths)
	l.mu.RUnlock()

	for _, dir := range paths {
		lib := filepath.Join(dir, name+".so")
		if _, err := os.Stat(lib); err != nil {
			continue
		}
		e, err := l.open(name, lib)
		if err != nil {
			return Entry{}, err
		}
		return e, nil
	}
	return Entry{}, errors.WrapKind(errors.KindNotFound,
		fmt.Errorf("plugin type %q: %w", name, errors.ErrPluginNotFound),
		"Loader", "Resolve", "plugin search")
}

func (l *Loader) open(name, lib string) (Entry, error) {
	p, err := goplugin.Open(lib)
	if err != nil {
		return Entry{}, errors.WrapIO(err, "Loader", "open", "shared library load")
	}

	createSym, err := p.Lookup("Create" + name)
	if err != nil {
		return Entry{}, errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("library %s lacks Create%s: %w", lib, name, errors.ErrPluginNotFound),
			"Loader", "open", "create symbol lookup")
	}
	create, ok := createSym.(func() any)
	if !ok {
		return Entry{}, errors.WrapInvalid(
			fmt.Errorf("Create%s has signature %T, want func() any", name, createSym),
			"Loader", "open", "create symbol type check")
	}

	e := Entry{Name: name, Create: create}
	if destroySym, err := p.Lookup("Destroy" + name); err == nil {
		if destroy, ok := destroySym.(func(any)); ok {
			e.Destroy = destroy
		}
	}

	l.mu.Lock()
	l.opened[name] = e
	l.mu.Unlock()

	l.logger.Info("loaded plugin library", "type", name, "path", lib)
	return e, nil
}
