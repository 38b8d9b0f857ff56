// Package sqlite provides a storage reactor that inserts one row per
// consumed event into a SQLite table, one column per configured field.
package sqlite

import (
	"encoding/xml"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/vocab"
)

// PluginName is the plugin type name of the SQLite storage reactor.
const PluginName = "SQLiteReactor"

// Register registers the SQLite reactor with a plugin loader.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(PluginName, func() any { return New() })
}

type fieldConfig struct {
	Term string `xml:"term,attr"`
	Name string `xml:",chardata"`
}

type config struct {
	XMLName  xml.Name      `xml:"Reactor"`
	Database string        `xml:"Database"`
	Table    string        `xml:"Table"`
	Fields   []fieldConfig `xml:"Field"`
}

type column struct {
	name string
	urn  string
	term vocab.Term
}

// Reactor writes events into a SQLite table. The table is created on start
// if it does not exist; values are stored as text in the codec layouts.
type Reactor struct {
	reactor.Base

	mu       sync.Mutex
	database string
	table    string
	columns  []column
	db       *sqlx.DB
	insert   string
}

// New creates an unconfigured SQLite reactor.
func New() *Reactor {
	return &Reactor{Base: reactor.NewBase(reactor.Storage)}
}

// SetConfig resolves the column terms and records the target table.
func (r *Reactor) SetConfig(v *vocab.Vocabulary, cfg reactor.Config) error {
	if err := r.Base.SetConfig(v, cfg); err != nil {
		return err
	}
	var own config
	if err := xml.Unmarshal(cfg.Doc, &own); err != nil {
		return errors.WrapMalformed(err, "SQLiteReactor", "SetConfig", "XML decode")
	}
	if own.Database == "" || own.Table == "" || len(own.Fields) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"SQLiteReactor", "SetConfig", "Database, Table and Field element check")
	}

	columns := make([]column, 0, len(own.Fields))
	for _, fc := range own.Fields {
		ref, ok := v.FindTerm(fc.Term)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("field term %q: %w", fc.Term, errors.ErrTermNotFound),
				"SQLiteReactor", "SetConfig", "field term lookup")
		}
		term, _ := v.Term(ref)
		columns = append(columns, column{name: fc.Name, urn: fc.Term, term: term})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.database = own.Database
	r.table = own.Table
	r.columns = columns
	return nil
}

// Start resolves the database handle, creates the table and prepares the
// insert statement text.
func (r *Reactor) Start() error {
	if err := r.Base.Start(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connectLocked(); err != nil {
		r.Base.Stop()
		return err
	}
	return nil
}

func (r *Reactor) connectLocked() error {
	db, err := r.Deps().Databases.Database(r.database)
	if err != nil {
		return err
	}

	names := make([]string, len(r.columns))
	marks := make([]string, len(r.columns))
	defs := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.name
		marks[i] = "?"
		defs[i] = c.name + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		r.table, strings.Join(defs, ", "))
	if _, err := db.Exec(create); err != nil {
		return errors.WrapIO(err, "SQLiteReactor", "Start", "table create")
	}

	r.db = db
	r.insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table, strings.Join(names, ", "), strings.Join(marks, ", "))
	return nil
}

// Stop drops the handle; the database manager owns the connection.
func (r *Reactor) Stop() error {
	if err := r.Base.Stop(); err != nil {
		return err
	}
	r.mu.Lock()
	r.db = nil
	r.mu.Unlock()
	return nil
}

// Process inserts one row with the event's field values.
func (r *Reactor) Process(e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"SQLiteReactor", "Process", "lifecycle check")
	}

	args := make([]any, len(r.columns))
	for i, c := range r.columns {
		v, ok := e.Get(c.term.Ref)
		if !ok {
			args[i] = nil
			continue
		}
		layout := c.term.Format
		if layout == "" {
			layout = "02/Jan/2006:15:04:05 -0700"
		}
		args[i] = v.Format(layout)
	}
	if _, err := r.db.Exec(r.insert, args...); err != nil {
		return errors.WrapIO(err, "SQLiteReactor", "Process", "row insert")
	}
	r.RecordIn()
	return r.Deliver(e)
}

// UpdateDatabases re-resolves the handle after a refresh.
func (r *Reactor) UpdateDatabases() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	return r.connectLocked()
}

// UpdateVocabulary re-resolves the column terms.
func (r *Reactor) UpdateVocabulary(v *vocab.Vocabulary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.columns {
		ref, ok := v.FindTerm(r.columns[i].urn)
		if !ok {
			return errors.WrapKind(errors.KindNotFound,
				fmt.Errorf("field term %q: %w", r.columns[i].urn, errors.ErrTermNoLongerDefined),
				"SQLiteReactor", "UpdateVocabulary", "field term lookup")
		}
		r.columns[i].term, _ = v.Term(ref)
	}
	return nil
}

var _ reactor.Reactor = (*Reactor)(nil)
