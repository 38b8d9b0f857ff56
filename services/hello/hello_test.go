package hello

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vincentyang1210/pion/server"
)

type recorder struct {
	status   int
	headers  map[string]string
	body     bytes.Buffer
	finished bool
}

func newRecorder() *recorder {
	return &recorder{status: 200, headers: make(map[string]string)}
}

func (r *recorder) SetStatus(code int)           { r.status = code }
func (r *recorder) SetHeader(name, value string) { r.headers[name] = value }
func (r *recorder) Write(p []byte) (int, error)  { return r.body.Write(p) }
func (r *recorder) Finish() error                { r.finished = true; return nil }

var _ server.ResponseWriter = (*recorder)(nil)

func TestHandleWritesGreeting(t *testing.T) {
	w := newRecorder()
	New().Handle(&server.Request{Method: "GET", Path: "/"}, w)

	assert.Equal(t, 200, w.status)
	assert.Equal(t, "<html><body>Hello World!</body></html>", w.body.String())
	assert.True(t, w.finished)
}
