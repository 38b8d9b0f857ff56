// Package logoutput provides a storage reactor that writes events through
// a configured codec to a file.
package logoutput

import (
	"bufio"
	"encoding/xml"
	"os"
	"sync"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/vocab"
)

// PluginName is the plugin type name of the log output reactor.
const PluginName = "LogOutputReactor"

// Register registers the log output reactor with a plugin loader.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(PluginName, func() any { return New() })
}

type config struct {
	XMLName  xml.Name `xml:"Reactor"`
	Filename string   `xml:"Filename"`
	Codec    string   `xml:"Codec"`
}

// Reactor appends one serialized record per consumed event. The codec's
// trailer is written when the reactor stops.
type Reactor struct {
	reactor.Base

	mu       sync.Mutex
	filename string
	codecID  string
	cdc      codec.Codec
	file     *os.File
	w        *bufio.Writer
}

// New creates an unconfigured log output reactor.
func New() *Reactor {
	return &Reactor{Base: reactor.NewBase(reactor.Storage)}
}

// SetConfig records the target file and codec id.
func (r *Reactor) SetConfig(v *vocab.Vocabulary, cfg reactor.Config) error {
	if err := r.Base.SetConfig(v, cfg); err != nil {
		return err
	}
	var own config
	if err := xml.Unmarshal(cfg.Doc, &own); err != nil {
		return errors.WrapMalformed(err, "LogOutputReactor", "SetConfig", "XML decode")
	}
	if own.Filename == "" || own.Codec == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"LogOutputReactor", "SetConfig", "Filename and Codec element check")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filename = own.Filename
	r.codecID = own.Codec
	return nil
}

// Start resolves a private codec clone and opens the output file.
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
	f, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.Base.Stop()
		return errors.WrapIO(err, "LogOutputReactor", "Start", "output file open")
	}
	r.cdc = cdc
	r.file = f
	r.w = bufio.NewWriter(f)
	return nil
}

// Stop writes the codec trailer and closes the file.
func (r *Reactor) Stop() error {
	if err := r.Base.Stop(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		if err := r.cdc.Finish(r.w); err != nil {
			return err
		}
		if err := r.w.Flush(); err != nil {
			return errors.WrapIO(err, "LogOutputReactor", "Stop", "output flush")
		}
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return errors.WrapIO(err, "LogOutputReactor", "Stop", "output close")
		}
	}
	r.cdc = nil
	r.file = nil
	r.w = nil
	return nil
}

// Process serializes the event. Storage reactors forward nothing.
func (r *Reactor) Process(e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"LogOutputReactor", "Process", "lifecycle check")
	}
	if err := r.cdc.Write(r.w, e); err != nil {
		return err
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
