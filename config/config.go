// Package config loads and validates the platform configuration. The file
// format is YAML; codec and reactor definitions stay in their XML form and
// are referenced by file path or embedded inline.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/vocab"
)

// Defaults applied by Validate when a field is unset.
const (
	DefaultServerAddress = "127.0.0.1:8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
)

// Config is the complete platform configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// PluginPaths lists directories probed for shared-object plugins.
	PluginPaths []string `yaml:"pluginPaths"`

	// Databases maps a name to a connection URL, e.g. "sqlite:///tmp/p.db".
	Databases map[string]string `yaml:"databases"`

	Vocabulary []NamespaceConfig `yaml:"vocabulary"`
	Codecs     []DocRef          `yaml:"codecs"`
	Reactors   []DocRef          `yaml:"reactors"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// SchedulerConfig sizes the shared worker pool.
type SchedulerConfig struct {
	Workers   int `yaml:"workers"`   // 0 means one per CPU
	QueueSize int `yaml:"queueSize"` // 0 means the scheduler default
}

// ServerConfig controls the HTTP server. Doc optionally references an XML
// server document declaring the port and plugin services.
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Address        string   `yaml:"address"`
	MaxHeaderBytes int      `yaml:"maxHeaderBytes"`
	MaxBodyBytes   int      `yaml:"maxBodyBytes"`
	IdleTimeout    Duration `yaml:"idleTimeout"`
	Doc            *DocRef  `yaml:"doc"`
}

// Duration decodes YAML strings like "45s" or "2m" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return errors.WrapMalformed(
			fmt.Errorf("duration value: %w", err), "Config", "UnmarshalYAML", "node decode")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.WrapMalformed(
			fmt.Errorf("duration %q: %w", s, errors.ErrMalformed),
			"Config", "UnmarshalYAML", "duration parse")
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MetricsConfig controls the Prometheus endpoint, served on its own
// listener so scrapes never compete with event traffic.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// NamespaceConfig declares the terms of one vocabulary namespace.
type NamespaceConfig struct {
	Name   string       `yaml:"name"`
	Locked bool         `yaml:"locked"`
	Terms  []TermConfig `yaml:"terms"`
}

// TermConfig declares one vocabulary term. Name is the URN fragment; the
// full URN is "<namespace>#<name>".
type TermConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Comment string `yaml:"comment"`
	Format  string `yaml:"format"`
}

// DocRef names an XML document either inline or by file path. Exactly one
// of the two must be set.
type DocRef struct {
	File   string `yaml:"file"`
	Inline string `yaml:"inline"`
}

// Bytes returns the referenced document.
func (d DocRef) Bytes() ([]byte, error) {
	if d.Inline != "" {
		return []byte(d.Inline), nil
	}
	data, err := os.ReadFile(d.File)
	if err != nil {
		return nil, errors.WrapIO(err, "Config", "Bytes", "document read")
	}
	return data, nil
}

// Load reads and validates a configuration file. Unknown keys are
// rejected so typos fail fast.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO(err, "Config", "Load", "file open")
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a configuration stream.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.WrapMalformed(
			fmt.Errorf("yaml decode: %w", err), "Config", "Parse", "document decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log level %q: %w", c.Logging.Level, errors.ErrInvalidConfig),
			"Config", "Validate", "logging check")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log format %q: %w", c.Logging.Format, errors.ErrInvalidConfig),
			"Config", "Validate", "logging check")
	}

	if c.Scheduler.Workers < 0 || c.Scheduler.QueueSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("scheduler sizing: %w", errors.ErrInvalidConfig),
			"Config", "Validate", "scheduler check")
	}

	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.WrapInvalid(
			fmt.Errorf("metrics address: %w", errors.ErrMissingConfig),
			"Config", "Validate", "metrics check")
	}

	for _, ns := range c.Vocabulary {
		if ns.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("namespace name: %w", errors.ErrMissingConfig),
				"Config", "Validate", "vocabulary check")
		}
		for _, term := range ns.Terms {
			if term.Name == "" {
				return errors.WrapInvalid(
					fmt.Errorf("term name in %q: %w", ns.Name, errors.ErrMissingConfig),
					"Config", "Validate", "vocabulary check")
			}
			if _, err := vocab.ParseTermType(term.Type); err != nil {
				return err
			}
		}
	}

	docs := append(append([]DocRef{}, c.Codecs...), c.Reactors...)
	if c.Server.Doc != nil {
		docs = append(docs, *c.Server.Doc)
	}
	for i, ref := range docs {
		if (ref.File == "") == (ref.Inline == "") {
			return errors.WrapInvalid(
				fmt.Errorf("document %d needs exactly one of file or inline: %w",
					i, errors.ErrInvalidConfig),
				"Config", "Validate", "document check")
		}
	}
	return nil
}

// ApplyVocabulary creates the configured namespaces and terms on the
// manager. Namespaces are locked only after their terms are added.
func (c *Config) ApplyVocabulary(m *vocab.Manager) error {
	for _, ns := range c.Vocabulary {
		if err := m.AddNamespace(ns.Name); err != nil {
			return err
		}
		for _, tc := range ns.Terms {
			tt, err := vocab.ParseTermType(tc.Type)
			if err != nil {
				return err
			}
			t := vocab.Term{
				ID:      ns.Name + "#" + tc.Name,
				Type:    tt,
				Comment: tc.Comment,
				Format:  tc.Format,
			}
			if _, err := m.AddTerm(t); err != nil {
				return err
			}
		}
		if ns.Locked {
			if err := m.SetLocked(ns.Name, true); err != nil {
				return err
			}
		}
	}
	return nil
}
