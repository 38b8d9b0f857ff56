// Package reactors registers the built-in reactor plugins.
package reactors

import (
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactors/filter"
	"github.com/vincentyang1210/pion/reactors/loginput"
	"github.com/vincentyang1210/pion/reactors/logoutput"
	"github.com/vincentyang1210/pion/reactors/natspub"
	"github.com/vincentyang1210/pion/reactors/sqlite"
)

// Register registers every built-in reactor type with the loader:
// log file collection, term filtering, log file storage, SQLite storage
// and NATS publishing.
func Register(l *plugin.Loader) error {
	for _, register := range []func(*plugin.Loader) error{
		loginput.Register,
		filter.Register,
		logoutput.Register,
		sqlite.Register,
		natspub.Register,
	} {
		if err := register(l); err != nil {
			return err
		}
	}
	return nil
}
