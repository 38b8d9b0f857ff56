// Package reactor defines the contract for event-processing nodes in the
// reaction graph and a Base implementation carrying identity, statistics
// and downstream delivery. Concrete reactors embed Base and implement
// Process; they never call each other directly — every delivery goes
// through the engine's scheduler.
package reactor

import (
	"encoding/xml"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// Kind tags what role a reactor plays in the graph.
type Kind string

const (
	// Collection reactors produce events from external sources; Process
	// is never called on them externally.
	Collection Kind = "collection"
	// Processing reactors transform and forward events.
	Processing Kind = "processing"
	// Storage reactors consume events terminally.
	Storage Kind = "storage"
)

// Connection declares a downstream edge in a reactor configuration.
type Connection struct {
	To string `xml:"to,attr"`
}

// Config is the XML configuration accepted by every reactor. Doc keeps the
// raw document so concrete reactors can decode their own child elements.
type Config struct {
	XMLName     xml.Name     `xml:"Reactor"`
	Plugin      string       `xml:"Plugin"`
	Name        string       `xml:"Name"`
	Comment     string       `xml:"Comment"`
	Connections []Connection `xml:"Connection"`

	Doc []byte `xml:"-"`
}

// ParseConfig decodes a reactor configuration document, retaining the raw
// bytes for plugin-specific decoding.
func ParseConfig(doc []byte) (Config, error) {
	var cfg Config
	if err := xml.Unmarshal(doc, &cfg); err != nil {
		return Config{}, errors.WrapMalformed(err, "Reactor", "ParseConfig", "XML decode")
	}
	cfg.Doc = doc
	return cfg, nil
}

// Deliverer routes an event to a reactor by id. The engine implements it by
// posting the delivery on the shared scheduler.
type Deliverer interface {
	Deliver(reactorID string, e *event.Event) error
}

// CodecProvider hands out private codec clones by id.
type CodecProvider interface {
	GetCodec(id string) (codec.Codec, error)
}

// DatabaseProvider resolves named database handles.
type DatabaseProvider interface {
	Database(name string) (*sqlx.DB, error)
}

// Dependencies are the shared services handed to a reactor when the engine
// creates it. Fields a reactor does not use stay nil.
type Dependencies struct {
	Logger     *slog.Logger
	Codecs     CodecProvider
	Databases  DatabaseProvider
	Vocabulary *vocab.Manager
}

// Reactor is the contract every reaction node implements.
type Reactor interface {
	ID() string
	Name() string
	Comment() string
	Kind() Kind
	Running() bool
	EventsIn() uint64
	EventsOut() uint64
	LastError() error
	Downstream() []string

	SetConfig(v *vocab.Vocabulary, cfg Config) error
	Start() error
	Stop() error
	Process(e *event.Event) error
	UpdateVocabulary(v *vocab.Vocabulary) error
	UpdateCodecs() error
	UpdateDatabases() error
	ClearStats()
	RecordError(err error)
	AddConnection(to string) error
	RemoveConnection(to string) error

	// Bind wires the reactor's identity, dependencies and delivery path;
	// called by the engine when the reactor is added.
	Bind(id string, d Deliverer, deps Dependencies)
}
