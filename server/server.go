// Package server provides the HTTP server: a TCP acceptor feeding a
// connection pool, a per-connection protocol state machine and
// longest-prefix service dispatch. The protocol machine is deliberately
// self-contained so parse limits, keep-alive policy and error mapping stay
// under the platform's control.
package server

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/metric"
	"github.com/vincentyang1210/pion/scheduler"
)

const serverName = "pion"

const (
	// DefaultMaxHeaderBytes caps the request line plus headers.
	DefaultMaxHeaderBytes = 8 * 1024
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 1 << 20
	// DefaultIdleTimeout closes connections idle between requests.
	DefaultIdleTimeout = 30 * time.Second
)

// Server accepts TCP connections and runs the HTTP protocol machine on
// each. Connections are tracked in a pool so Stop can close them as a
// group; the pool mutex is held only for pool mutation, never across I/O.
type Server struct {
	logger         *slog.Logger
	sched          *scheduler.Scheduler
	dispatch       *dispatcher
	maxHeaderBytes int
	maxBodyBytes   int
	idleTimeout    time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  bool

	wg      sync.WaitGroup
	metrics *serverMetrics
}

type serverMetrics struct {
	requests    prometheus.Counter
	connections prometheus.Gauge
}

// Option configures a Server.
type Option func(*Server)

// WithMaxHeaderBytes caps the request line plus headers.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxHeaderBytes = n
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithIdleTimeout sets the per-state idle deadline.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithMetricsRegistry registers server metrics; a nil registry disables
// them.
func WithMetricsRegistry(registry *metric.Registry) Option {
	return func(s *Server) {
		if registry == nil {
			return
		}
		m := &serverMetrics{
			requests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pion", Subsystem: "server",
				Name: "requests_total", Help: "Total HTTP requests handled",
			}),
			connections: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pion", Subsystem: "server",
				Name: "open_connections", Help: "Currently pooled connections",
			}),
		}
		if err := registry.RegisterCounter("server", "requests_total", m.requests); err != nil {
			s.logger.Error("failed to register server metrics", "error", err)
			return
		}
		if err := registry.RegisterGauge("server", "open_connections", m.connections); err != nil {
			s.logger.Error("failed to register server metrics", "error", err)
			return
		}
		s.metrics = m
	}
}

// New creates a server bound to the shared scheduler.
func New(logger *slog.Logger, sched *scheduler.Scheduler, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:         logger,
		sched:          sched,
		dispatch:       newDispatcher(),
		maxHeaderBytes: DefaultMaxHeaderBytes,
		maxBodyBytes:   DefaultMaxBodyBytes,
		idleTimeout:    DefaultIdleTimeout,
		conns:          make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddService registers a service under a path prefix. Registration is
// allowed while the server is running; in-flight lookups keep using the
// previous snapshot.
func (s *Server) AddService(prefix string, svc Service) error {
	return s.dispatch.add(prefix, svc)
}

// RemoveService drops a registered prefix.
func (s *Server) RemoveService(prefix string) error {
	return s.dispatch.remove(prefix)
}

// Start opens the listening socket and spawns the acceptor. The address
// follows net.Listen, e.g. "127.0.0.1:0" for an ephemeral port.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrAlreadyRunning,
			"Server", "Start", "lifecycle check")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapIO(err, "Server", "Start", "socket listen")
	}
	s.listener = ln
	s.running = true

	s.wg.Add(1)
	go s.acceptLoop(ln)
	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// PoolSize returns the number of pooled connections.
func (s *Server) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop posts a stop task to the scheduler so shutdown serializes with
// accept completions; the task closes the acceptor and every pooled
// connection and empties the pool. Stop waits for the connection handlers
// to drain.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	stop := func() {
		defer close(done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			_ = s.listener.Close()
			s.listener = nil
		}
		for c := range s.conns {
			_ = c.Close()
		}
		s.conns = make(map[net.Conn]struct{})
		if s.metrics != nil {
			s.metrics.connections.Set(0)
		}
	}
	if err := s.sched.Post(stop); err != nil {
		// scheduler already stopped; shut down inline
		stop()
	}
	<-done

	s.wg.Wait()
	s.logger.Info("server stopped")
	return nil
}

// acceptLoop arms one accept at a time: each new connection is pooled and
// handed to the protocol machine, then the next accept runs.
func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener closed during Stop, or a transient accept failure
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if running {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		if s.metrics != nil {
			s.metrics.connections.Set(float64(len(s.conns)))
		}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// finish removes a connection from the pool and closes it.
func (s *Server) finish(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	if s.metrics != nil {
		s.metrics.connections.Set(float64(len(s.conns)))
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// handleConn runs the protocol state machine for one connection:
// read request line and headers, read the body, dispatch, write the
// response, then keep alive or close.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.finish(conn)

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		req, err := readRequest(br, s.maxHeaderBytes, s.maxBodyBytes)
		if err != nil {
			s.respondReadError(conn, bw, err)
			return
		}
		req.RemoteAddr = conn.RemoteAddr().String()
		if s.metrics != nil {
			s.metrics.requests.Inc()
		}

		keepAlive := req.keepAlive()
		w := newResponseWriter(bw, keepAlive)
		s.dispatchRequest(req, w)
		if !w.finished {
			// the service never finished the response; close without one
			s.logger.Error("service did not finish response", "path", req.Path)
			return
		}
		if !keepAlive {
			return
		}
	}
}

// dispatchRequest looks up the service and contains its failures: a panic
// becomes a 500 if the response has not been finished yet.
func (s *Server) dispatchRequest(req *Request, w *responseWriter) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("service panicked", "path", req.Path, "panic", rec)
			if !w.finished {
				w.status = 500
				w.headers = nil
				w.body.Reset()
				writeErrorBody(w, 500)
				_ = w.Finish()
			}
		}
	}()

	svc, ok := s.dispatch.lookup(req.Path)
	if !ok {
		w.SetStatus(404)
		writeErrorBody(w, 404)
		_ = w.Finish()
		return
	}
	svc.Handle(req, w)
}

// respondReadError maps a parse failure to its status code and closes.
// I/O errors and clean end-of-stream produce no response.
func (s *Server) respondReadError(conn net.Conn, bw *bufio.Writer, err error) {
	if err == io.EOF {
		return
	}
	var status int
	switch {
	case errors.Is(err, errors.ErrHeadersTooLarge):
		status = 413
	case errors.Is(err, errors.ErrUnsupportedTransfer):
		status = 501
	case errors.Classify(err) == errors.KindMalformed:
		status = 400
	default:
		// timeout or connection error; close silently
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.idleTimeout))
	w := newResponseWriter(bw, false)
	w.SetStatus(status)
	writeErrorBody(w, status)
	if err := w.Finish(); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func writeErrorBody(w ResponseWriter, status int) {
	fmt.Fprintf(w, "<html><body><h1>%d %s</h1></body></html>", status, statusText[status])
}
