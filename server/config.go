package server

import (
	"encoding/xml"
	"fmt"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/plugin"
)

// ServiceConfig binds a plugin-provided service to a path prefix.
type ServiceConfig struct {
	Path   string `xml:"path,attr"`
	Plugin string `xml:"Plugin"`
}

// Config is the XML form of the server configuration.
type Config struct {
	XMLName  xml.Name        `xml:"Server"`
	Port     int             `xml:"Port"`
	Comment  string          `xml:"Comment"`
	Services []ServiceConfig `xml:"Service"`
}

// ParseConfig decodes a server configuration document.
func ParseConfig(doc []byte) (Config, error) {
	var cfg Config
	if err := xml.Unmarshal(doc, &cfg); err != nil {
		return Config{}, errors.WrapMalformed(err, "Server", "ParseConfig", "XML decode")
	}
	return cfg, nil
}

// Addr renders the configured port as a listen address on all interfaces.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SetConfig registers the configured plugin services. Each <Service> is
// created through the loader and must satisfy the Service contract.
func (s *Server) SetConfig(loader *plugin.Loader, cfg Config) error {
	for _, sc := range cfg.Services {
		if sc.Plugin == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"Server", "SetConfig", "Plugin element check")
		}
		entry, err := loader.Resolve(sc.Plugin)
		if err != nil {
			return err
		}
		svc, ok := entry.Create().(Service)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("plugin %q does not implement the service contract", sc.Plugin),
				"Server", "SetConfig", "contract check")
		}
		if err := s.AddService(sc.Path, svc); err != nil {
			return err
		}
		s.logger.Info("service added", "path", sc.Path, "plugin", sc.Plugin)
	}
	return nil
}
