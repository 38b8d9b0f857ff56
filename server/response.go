package server

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vincentyang1210/pion/errors"
)

// statusText covers the statuses the protocol machine produces.
var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	404: "Not Found",
	413: "Request Entity Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
}

// ResponseWriter buffers one response. A service must call Finish exactly
// once; the response is flushed to the connection at that point.
type ResponseWriter interface {
	SetStatus(code int)
	SetHeader(name, value string)
	Write(p []byte) (int, error)
	Finish() error
}

// responseWriter assembles the response for a single request.
type responseWriter struct {
	out       *bufio.Writer
	status    int
	headers   [][2]string
	body      bytes.Buffer
	keepAlive bool
	finished  bool
}

func newResponseWriter(out *bufio.Writer, keepAlive bool) *responseWriter {
	return &responseWriter{out: out, status: 200, keepAlive: keepAlive}
}

// SetStatus sets the response status code; the default is 200.
func (w *responseWriter) SetStatus(code int) { w.status = code }

// SetHeader appends a response header. Date, Server, Content-Length and
// Connection are managed by the writer.
func (w *responseWriter) SetHeader(name, value string) {
	w.headers = append(w.headers, [2]string{name, value})
}

// Write buffers body bytes.
func (w *responseWriter) Write(p []byte) (int, error) {
	return w.body.Write(p)
}

// Finish serializes and flushes the response. Calling Finish twice is an
// error.
func (w *responseWriter) Finish() error {
	if w.finished {
		return errors.WrapKind(errors.KindLifecycle,
			fmt.Errorf("response already finished"),
			"ResponseWriter", "Finish", "state check")
	}
	w.finished = true

	text, ok := statusText[w.status]
	if !ok {
		text = "Unknown"
	}
	fmt.Fprintf(w.out, "HTTP/1.1 %d %s\r\n", w.status, text)
	// IMF-fixdate requires the GMT zone token
	fmt.Fprintf(w.out, "Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat))
	fmt.Fprintf(w.out, "Server: %s\r\n", serverName)

	hasContentType := false
	for _, h := range w.headers {
		if h[0] == "Content-Type" {
			hasContentType = true
		}
		fmt.Fprintf(w.out, "%s: %s\r\n", h[0], h[1])
	}
	if !hasContentType {
		fmt.Fprintf(w.out, "Content-Type: text/html\r\n")
	}
	fmt.Fprintf(w.out, "Content-Length: %s\r\n", strconv.Itoa(w.body.Len()))
	if w.keepAlive {
		fmt.Fprintf(w.out, "Connection: keep-alive\r\n")
	} else {
		fmt.Fprintf(w.out, "Connection: close\r\n")
	}
	fmt.Fprintf(w.out, "\r\n")

	if _, err := w.out.Write(w.body.Bytes()); err != nil {
		return errors.WrapIO(err, "ResponseWriter", "Finish", "body write")
	}
	if err := w.out.Flush(); err != nil {
		return errors.WrapIO(err, "ResponseWriter", "Finish", "response flush")
	}
	return nil
}

var _ ResponseWriter = (*responseWriter)(nil)
