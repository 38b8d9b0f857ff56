// Package loginput provides a collection reactor that reads a log file
// through a configured codec and injects one event per record into the
// graph.
package loginput

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

// PluginName is the plugin type name of the log input reactor.
const PluginName = "LogInputReactor"

// Register registers the log input reactor with a plugin loader.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(PluginName, func() any { return New() })
}

type config struct {
	XMLName  xml.Name `xml:"Reactor"`
	Filename string   `xml:"Filename"`
	Codec    string   `xml:"Codec"`
}

// Reactor reads records on a background goroutine until end of file or
// Stop, delivering each decoded event downstream.
type Reactor struct {
	reactor.Base

	mu       sync.Mutex
	filename string
	codecID  string

	stop chan struct{}
	done sync.WaitGroup
}

// New creates an unconfigured log input reactor.
func New() *Reactor {
	return &Reactor{Base: reactor.NewBase(reactor.Collection)}
}

// SetConfig records the source file and codec id.
func (r *Reactor) SetConfig(v *vocab.Vocabulary, cfg reactor.Config) error {
	if err := r.Base.SetConfig(v, cfg); err != nil {
		return err
	}
	var own config
	if err := xml.Unmarshal(cfg.Doc, &own); err != nil {
		return errors.WrapMalformed(err, "LogInputReactor", "SetConfig", "XML decode")
	}
	if own.Filename == "" || own.Codec == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"LogInputReactor", "SetConfig", "Filename and Codec element check")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filename = own.Filename
	r.codecID = own.Codec
	return nil
}

// Start opens the file and spawns the read loop.
func (r *Reactor) Start() error {
	if err := r.Base.Start(); err != nil {
		return err
	}

	r.mu.Lock()
	filename, codecID := r.filename, r.codecID
	r.mu.Unlock()

	cdc, err := r.Deps().Codecs.GetCodec(codecID)
	if err != nil {
		r.Base.Stop()
		return err
	}
	f, err := os.Open(filename)
	if err != nil {
		r.Base.Stop()
		return errors.WrapIO(err, "LogInputReactor", "Start", "input file open")
	}

	r.stop = make(chan struct{})
	r.done.Add(1)
	go r.readLoop(f, cdc)
	return nil
}

// Stop signals the read loop and waits for it to exit.
func (r *Reactor) Stop() error {
	if err := r.Base.Stop(); err != nil {
		return err
	}
	close(r.stop)
	r.done.Wait()
	return nil
}

// Drained blocks until the read loop has consumed the whole file. Useful
// for batch-style runs that stop the engine after ingest.
func (r *Reactor) Drained() {
	r.done.Wait()
}

func (r *Reactor) readLoop(f *os.File, cdc codec.Codec) {
	defer r.done.Done()
	defer f.Close()

	logger := r.Deps().Logger
	br := bufio.NewReader(f)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		e := event.New(cdc.EventType())
		ok, err := cdc.Read(br, e)
		if err != nil {
			r.RecordError(err)
			if logger != nil {
				logger.Error("failed to decode record", "error", err)
			}
			return
		}
		if !ok {
			return
		}
		r.RecordIn()
		if err := r.Deliver(e); err != nil {
			r.RecordError(err)
			return
		}
	}
}

var _ reactor.Reactor = (*Reactor)(nil)
