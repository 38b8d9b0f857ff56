// Package database manages the named database handles shared by storage
// reactors. Handles are opened lazily from configured URLs and refreshed as
// a group when the engine's updateDatabases runs.
package database

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/vincentyang1210/pion/errors"
)

const (
	maxOpenConns    = 16
	maxIdleConns    = 4
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// Manager holds named database connections.
type Manager struct {
	mu      sync.RWMutex
	urls    map[string]string
	handles map[string]*sqlx.DB
	logger  *slog.Logger
}

// NewManager creates an empty database manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		urls:    make(map[string]string),
		handles: make(map[string]*sqlx.DB),
		logger:  logger,
	}
}

// Configure declares a named database URL. Supported scheme: sqlite://.
// The connection is opened on first Database call.
func (m *Manager) Configure(name, dbURL string) error {
	if name == "" || dbURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"DatabaseManager", "Configure", "name and URL check")
	}
	if _, _, err := parseURL(dbURL); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[name] = dbURL
	return nil
}

// Database returns the handle for a configured name, opening it if needed.
func (m *Manager) Database(name string) (*sqlx.DB, error) {
	m.mu.RLock()
	if db, ok := m.handles[name]; ok {
		m.mu.RUnlock()
		return db, nil
	}
	dbURL, configured := m.urls[name]
	m.mu.RUnlock()

	if !configured {
		return nil, errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("database %q: %w", name, errors.ErrNotFound),
			"DatabaseManager", "Database", "name lookup")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if db, ok := m.handles[name]; ok {
		return db, nil
	}
	db, err := open(dbURL)
	if err != nil {
		return nil, err
	}
	m.handles[name] = db
	m.logger.Info("database opened", "name", name)
	return db, nil
}

// Refresh closes every open handle so the next Database call reconnects.
// Storage reactors re-resolve their handles when the engine notifies them.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed error
	for name, db := range m.handles {
		if err := db.Close(); err != nil && failed == nil {
			failed = errors.WrapIO(err, "DatabaseManager", "Refresh",
				fmt.Sprintf("close %s", name))
		}
		delete(m.handles, name)
	}
	return failed
}

// Close releases every open handle.
func (m *Manager) Close() error {
	return m.Refresh()
}

func parseURL(dbURL string) (driver, source string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", errors.WrapInvalid(err, "DatabaseManager", "parseURL", "URL parse")
	}
	switch u.Scheme {
	case "sqlite":
		// sqlite://file.db is relative, sqlite:///var/db/file.db absolute
		source = u.Path
		if u.Host != "" {
			source = u.Host + u.Path
		}
		return "sqlite3", source, nil
	default:
		return "", "", errors.WrapInvalid(
			fmt.Errorf("unsupported database scheme %q", u.Scheme),
			"DatabaseManager", "parseURL", "scheme check")
	}
}

func open(dbURL string) (*sqlx.DB, error) {
	driver, source, err := parseURL(dbURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, errors.WrapIO(err, "DatabaseManager", "open", "connection open")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WrapIO(err, "DatabaseManager", "open", "connection ping")
	}
	return db, nil
}
