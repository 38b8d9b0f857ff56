package codec

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/vocab"
)

// RegisterBuiltins registers the built-in codec types with a plugin loader.
func RegisterBuiltins(l *plugin.Loader) error {
	for name, create := range map[string]plugin.Factory{
		LogCodecPlugin:  func() any { return NewLogCodec() },
		JSONCodecPlugin: func() any { return NewJSONCodec() },
		XMLCodecPlugin:  func() any { return NewXMLCodec() },
	} {
		if err := l.RegisterBuiltin(name, create); err != nil {
			return err
		}
	}
	return nil
}

// Factory owns the configured codec instances. It observes the vocabulary
// manager and fans term changes out to every codec; reactors fetch private
// clones by id so parser state is never shared between workers.
type Factory struct {
	mu       sync.RWMutex
	loader   *plugin.Loader
	vocabMgr *vocab.Manager
	codecs   *plugin.Registry[Codec]
	logger   *slog.Logger
}

// NewFactory creates a codec factory and registers it as a vocabulary
// observer.
func NewFactory(logger *slog.Logger, loader *plugin.Loader, vocabMgr *vocab.Manager) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		loader:   loader,
		vocabMgr: vocabMgr,
		codecs:   plugin.NewRegistry[Codec](),
		logger:   logger,
	}
	vocabMgr.RegisterObserver(f)
	return f
}

// Close deregisters the factory from the vocabulary manager.
func (f *Factory) Close() {
	f.vocabMgr.UnregisterObserver(f)
}

// AddCodec creates and configures a codec from an XML document, returning
// its id. An empty <Name> is allowed; the id is always assigned.
func (f *Factory) AddCodec(doc []byte) (string, error) {
	cfg, err := ParseConfig(doc)
	if err != nil {
		return "", err
	}
	c, err := f.create(cfg)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.codecs.Add("", c)
	if err != nil {
		return "", err
	}
	if s, ok := c.(interface{ setID(string) }); ok {
		s.setID(id)
	}
	f.logger.Info("codec added", "id", id, "plugin", cfg.Plugin, "name", cfg.Name)
	return id, nil
}

// SetCodecConfig reconfigures an existing codec. The write lock is held for
// the whole update so clones handed out afterwards see the new config.
func (f *Factory) SetCodecConfig(id string, doc []byte) error {
	cfg, err := ParseConfig(doc)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup(id)
	if err != nil {
		return err
	}
	return c.SetConfig(f.vocabMgr.Vocabulary(), cfg)
}

// RemoveCodec drops a codec; clones already handed out stay usable.
func (f *Factory) RemoveCodec(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.codecs.Remove(id); err != nil {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("codec %q: %w", id, errors.ErrCodecNotFound),
			"Factory", "RemoveCodec", "id lookup")
	}
	return nil
}

// GetCodec returns a private clone of the codec stored under id.
func (f *Factory) GetCodec(id string) (Codec, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// HasCodec reports whether a codec is stored under id.
func (f *Factory) HasCodec(id string) bool {
	return f.codecs.Has(id)
}

// UpdateVocabulary fans the new snapshot out to every codec. The first
// failure aborts the fan-out and surfaces to the vocabulary manager.
func (f *Factory) UpdateVocabulary(v *vocab.Vocabulary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var failed error
	f.codecs.Each(func(id string, c Codec) bool {
		if err := c.UpdateVocabulary(v); err != nil {
			failed = errors.Wrap(err, "Factory", "UpdateVocabulary",
				fmt.Sprintf("codec %s refresh", id))
			return false
		}
		return true
	})
	return failed
}

// lookup resolves by id first, then by configured codec name so reactor
// configs can use stable names instead of generated ids.
func (f *Factory) lookup(id string) (Codec, error) {
	c, err := f.codecs.Get(id)
	if err == nil {
		return c, nil
	}
	var byName Codec
	f.codecs.Each(func(_ string, c Codec) bool {
		if c.Name() == id {
			byName = c
			return false
		}
		return true
	})
	if byName != nil {
		return byName, nil
	}
	return nil, errors.WrapKind(errors.KindNotFound,
		fmt.Errorf("codec %q: %w", id, errors.ErrCodecNotFound),
		"Factory", "lookup", "id lookup")
}

func (f *Factory) create(cfg Config) (Codec, error) {
	if cfg.Plugin == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Factory", "create", "Plugin element check")
	}
	entry, err := f.loader.Resolve(cfg.Plugin)
	if err != nil {
		return nil, err
	}
	c, ok := entry.Create().(Codec)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("plugin %q does not implement the codec contract", cfg.Plugin),
			"Factory", "create", "contract check")
	}
	if err := c.SetConfig(f.vocabMgr.Vocabulary(), cfg); err != nil {
		return nil, err
	}
	return c, nil
}

var _ vocab.Observer = (*Factory)(nil)
