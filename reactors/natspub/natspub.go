// Package natspub provides a storage reactor that publishes each consumed
// event to a NATS subject, serialized through a configured codec.
package natspub

import (
	"bytes"
	"encoding/xml"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/vocab"
)

// PluginName is the plugin type name of the NATS publisher reactor.
const PluginName = "NATSPublisherReactor"

// Register registers the NATS publisher reactor with a plugin loader.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(PluginName, func() any { return New() })
}

type config struct {
	XMLName xml.Name `xml:"Reactor"`
	URL     string   `xml:"URL"`
	Subject string   `xml:"Subject"`
	Codec   string   `xml:"Codec"`
}

// Reactor publishes one message per event. Each message carries a complete
// framed record (Write plus Finish) so consumers can decode messages
// independently.
type Reactor struct {
	reactor.Base

	mu      sync.Mutex
	url     string
	subject string
	codecID string
	cdc     codec.Codec
	conn    *nats.Conn
}

// New creates an unconfigured NATS publisher reactor.
func New() *Reactor {
	return &Reactor{Base: reactor.NewBase(reactor.Storage)}
}

// SetConfig records the server URL, subject and codec id.
func (r *Reactor) SetConfig(v *vocab.Vocabulary, cfg reactor.Config) error {
	if err := r.Base.SetConfig(v, cfg); err != nil {
		return err
	}
	var own config
	if err := xml.Unmarshal(cfg.Doc, &own); err != nil {
		return errors.WrapMalformed(err, "NATSPublisherReactor", "SetConfig", "XML decode")
	}
	if own.Subject == "" || own.Codec == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"NATSPublisherReactor", "SetConfig", "Subject and Codec element check")
	}
	if own.URL == "" {
		own.URL = nats.DefaultURL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url = own.URL
	r.subject = own.Subject
	r.codecID = own.Codec
	return nil
}

// Start resolves the codec and connects to the NATS server.
func (r *Reactor) Start() error {
	if err := r.Base.Start(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cdc, err := r.Deps().Codecs.GetCodec(r.codecID)
	if err != nil {
		r.Base.Stop()
		return err
	}
	conn, err := nats.Connect(r.url,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		r.Base.Stop()
		return errors.WrapIO(err, "NATSPublisherReactor", "Start", "server connect")
	}
	r.cdc = cdc
	r.conn = conn
	return nil
}

// Stop flushes and closes the connection.
func (r *Reactor) Stop() error {
	if err := r.Base.Stop(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		if err := r.conn.Flush(); err != nil {
			r.conn.Close()
			r.conn = nil
			return errors.WrapIO(err, "NATSPublisherReactor", "Stop", "connection flush")
		}
		r.conn.Close()
		r.conn = nil
	}
	r.cdc = nil
	return nil
}

// Process publishes one framed record.
func (r *Reactor) Process(e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"NATSPublisherReactor", "Process", "lifecycle check")
	}

	// clone per record so framing starts fresh for every message
	cdc := r.cdc.Clone()
	var buf bytes.Buffer
	if err := cdc.Write(&buf, e); err != nil {
		return err
	}
	if err := cdc.Finish(&buf); err != nil {
		return err
	}
	if err := r.conn.Publish(r.subject, buf.Bytes()); err != nil {
		return errors.WrapIO(err, "NATSPublisherReactor", "Process", "message publish")
	}
	r.RecordIn()
	return r.Deliver(e)
}

// UpdateCodecs swaps in a fresh clone of the configured codec.
func (r *Reactor) UpdateCodecs() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cdc == nil {
		return nil
	}
	cdc, err := r.Deps().Codecs.GetCodec(r.codecID)
	if err != nil {
		return err
	}
	r.cdc = cdc
	return nil
}

var _ reactor.Reactor = (*Reactor)(nil)
