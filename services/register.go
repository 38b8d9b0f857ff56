// Package services bundles the built-in HTTP service plugins.
package services

import (
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/services/hello"
)

// HelloPluginName is the plugin type name of the hello service.
const HelloPluginName = "HelloService"

// Register registers the service plugins that need no runtime
// dependencies; stats and health services are constructed directly by the
// driver.
func Register(l *plugin.Loader) error {
	return l.RegisterBuiltin(HelloPluginName, func() any { return hello.New() })
}
