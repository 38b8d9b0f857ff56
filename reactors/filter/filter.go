// Package filter provides a processing reactor that forwards only events
// defining every configured term.
package filter

import (
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/vocab"
)

// PluginName is the plugin type name of the filter reactor.
const PluginName = "FilterReactor"

// Register registers the filter reactor with a plugin loader.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(PluginName, func() any { return New() })
}

type config struct {
	XMLName xml.Name `xml:"Reactor"`
	Terms   []string `xml:"Term"`
}

// Reactor drops events missing any of the configured terms; matching
// events pass through unchanged. The mutex guards the term set against
// reconfiguration and vocabulary updates while workers dispatch events.
type Reactor struct {
	reactor.Base
	mu   sync.RWMutex
	urns []string
	refs []vocab.TermRef
}

// New creates an unconfigured filter reactor.
func New() *Reactor {
	return &Reactor{Base: reactor.NewBase(reactor.Processing)}
}

// SetConfig resolves the filter terms against the vocabulary.
func (r *Reactor) SetConfig(v *vocab.Vocabulary, cfg reactor.Config) error {
	if err := r.Base.SetConfig(v, cfg); err != nil {
		return err
	}
	var own config
	if err := xml.Unmarshal(cfg.Doc, &own); err != nil {
		return errors.WrapMalformed(err, "FilterReactor", "SetConfig", "XML decode")
	}
	refs := make([]vocab.TermRef, 0, len(own.Terms))
	for _, urn := range own.Terms {
		ref, ok := v.FindTerm(urn)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("term %q: %w", urn, errors.ErrTermNotFound),
				"FilterReactor", "SetConfig", "term lookup")
		}
		refs = append(refs, ref)
	}

	r.mu.Lock()
	r.urns = own.Terms
	r.refs = refs
	r.mu.Unlock()
	return nil
}

// Process counts the event and forwards it only when every filter term is
// defined on it. The ref slice is replaced wholesale on update, so a
// snapshot of the header is enough.
func (r *Reactor) Process(e *event.Event) error {
	r.RecordIn()
	r.mu.RLock()
	refs := r.refs
	r.mu.RUnlock()
	for _, ref := range refs {
		if !e.IsDefined(ref) {
			return nil
		}
	}
	return r.Deliver(e)
}

// UpdateVocabulary re-resolves the filter terms.
func (r *Reactor) UpdateVocabulary(v *vocab.Vocabulary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]vocab.TermRef, 0, len(r.urns))
	for _, urn := range r.urns {
		ref, ok := v.FindTerm(urn)
		if !ok {
			return errors.WrapKind(errors.KindNotFound,
				fmt.Errorf("term %q: %w", urn, errors.ErrTermNoLongerDefined),
				"FilterReactor", "UpdateVocabulary", "term lookup")
		}
		refs = append(refs, ref)
	}
	r.refs = refs
	return nil
}

var _ reactor.Reactor = (*Reactor)(nil)
