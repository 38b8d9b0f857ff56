// Package hello provides a trivial service used for smoke tests and
// liveness checks.
package hello

import (
	"io"

	"github.com/vincentyang1210/pion/server"
)

const body = "<html><body>Hello World!</body></html>"

// Service answers every request with a small fixed HTML page.
type Service struct{}

// New creates the service.
func New() *Service { return &Service{} }

// Handle writes the greeting page.
func (s *Service) Handle(_ *server.Request, w server.ResponseWriter) {
	w.SetStatus(200)
	_, _ = io.WriteString(w, body)
	_ = w.Finish()
}

var _ server.Service = (*Service)(nil)
