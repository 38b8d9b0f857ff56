// Package scheduler provides the shared worker pool that executes all
// asynchronous work in the platform. Reactor deliveries and engine
// housekeeping are posted as tasks; a fixed set of workers drains the
// queue until shutdown.
//
// Tasks posted from the same goroutine are dequeued in the order posted;
// there is no global total order and no priorities. Handlers must not
// block: long work is split by posting follow-up tasks.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/metric"
)

// Task is a unit of work executed on a worker.
type Task func()

// DefaultQueueSize bounds the task queue; posts beyond it are rejected so
// producers see backpressure instead of unbounded memory growth.
const DefaultQueueSize = 8192

// Scheduler runs a fixed-size worker pool over a bounded task queue.
type Scheduler struct {
	workers   int
	queueSize int
	tasks     chan Task

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	wg          sync.WaitGroup

	// idle tracking for Quiesce
	idleMu  sync.Mutex
	idleCnd *sync.Cond
	pending int

	// Statistics (atomic)
	posted   atomic.Int64
	executed atomic.Int64
	dropped  atomic.Int64

	metrics *schedulerMetrics
}

type schedulerMetrics struct {
	posted     prometheus.Counter
	executed   prometheus.Counter
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of worker goroutines. Values below one fall
// back to the hardware concurrency.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the task queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithMetricsRegistry registers scheduler metrics with the platform
// registry. A nil registry disables metrics.
func WithMetricsRegistry(registry *metric.Registry) Option {
	return func(s *Scheduler) {
		if registry == nil {
			return
		}
		m := &schedulerMetrics{
			posted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pion", Subsystem: "scheduler",
				Name: "tasks_posted_total", Help: "Total tasks posted",
			}),
			executed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pion", Subsystem: "scheduler",
				Name: "tasks_executed_total", Help: "Total tasks executed",
			}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pion", Subsystem: "scheduler",
				Name: "tasks_dropped_total", Help: "Tasks rejected because the queue was full",
			}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pion", Subsystem: "scheduler",
				Name: "queue_depth", Help: "Current task queue depth",
			}),
		}
		registry.RegisterCounter("scheduler", "tasks_posted_total", m.posted)
		registry.RegisterCounter("scheduler", "tasks_executed_total", m.executed)
		registry.RegisterCounter("scheduler", "tasks_dropped_total", m.dropped)
		registry.RegisterGauge("scheduler", "queue_depth", m.queueDepth)
		s.metrics = m
	}
}

// New creates a scheduler; workers default to the hardware concurrency.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		workers:   runtime.NumCPU(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = make(chan Task, s.queueSize)
	s.idleCnd = sync.NewCond(&s.idleMu)
	return s
}

// NumWorkers returns the configured worker count.
func (s *Scheduler) NumWorkers() int { return s.workers }

// Startup spawns the workers. Calling Startup on a running scheduler is a
// lifecycle error.
func (s *Scheduler) Startup(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return errors.WrapKind(errors.KindLifecycle, errors.ErrAlreadyRunning,
			"Scheduler", "Startup", "lifecycle check")
	}
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.started = true
	s.stopped = false
	return nil
}

// Post enqueues a task to run on any worker. It is safe to call from any
// goroutine. Posts are rejected once the queue is full or the scheduler
// has been shut down.
func (s *Scheduler) Post(task Task) error {
	if task == nil {
		return nil
	}
	s.lifecycleMu.Lock()
	if !s.started || s.stopped {
		s.lifecycleMu.Unlock()
		return errors.WrapKind(errors.KindLifecycle, errors.ErrNotRunning,
			"Scheduler", "Post", "lifecycle check")
	}

	s.idleMu.Lock()
	s.pending++
	s.idleMu.Unlock()

	select {
	case s.tasks <- task:
		s.lifecycleMu.Unlock()
		s.posted.Add(1)
		if s.metrics != nil {
			s.metrics.posted.Inc()
			s.metrics.queueDepth.Set(float64(len(s.tasks)))
		}
		return nil
	default:
		s.lifecycleMu.Unlock()
		s.taskDone()
		s.dropped.Add(1)
		if s.metrics != nil {
			s.metrics.dropped.Inc()
		}
		return errors.ErrQueueFull
	}
}

// Shutdown stops accepting new work, lets the workers finish whatever is
// already queued, and joins them. Shutting down a scheduler that never
// started is a no-op; an error is returned only when the workers fail to
// quiesce in time.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	if !s.started || s.stopped {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.tasks)
	s.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.lifecycleMu.Lock()
		s.started = false
		s.lifecycleMu.Unlock()
		return nil
	case <-timer.C:
		return errors.New("scheduler shutdown timed out")
	}
}

// Quiesce blocks until every posted task has finished executing. It is the
// barrier used by engine stop and by tests that assert on delivery counts.
func (s *Scheduler) Quiesce() {
	s.idleMu.Lock()
	for s.pending > 0 {
		s.idleCnd.Wait()
	}
	s.idleMu.Unlock()
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Workers  int   `json:"workers"`
	Posted   int64 `json:"posted"`
	Executed int64 `json:"executed"`
	Dropped  int64 `json:"dropped"`
	Queued   int   `json:"queued"`
}

// Stats returns current counters. Pairs may be mutually inconsistent under
// concurrent load but individual values are never torn.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Workers:  s.workers,
		Posted:   s.posted.Load(),
		Executed: s.executed.Load(),
		Dropped:  s.dropped.Load(),
		Queued:   len(s.tasks),
	}
}

func (s *Scheduler) taskDone() {
	s.idleMu.Lock()
	s.pending--
	if s.pending == 0 {
		s.idleCnd.Broadcast()
	}
	s.idleMu.Unlock()
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-s.tasks:
			if !ok {
				return
			}
			task()
			s.executed.Add(1)
			if s.metrics != nil {
				s.metrics.executed.Inc()
				s.metrics.queueDepth.Set(float64(len(s.tasks)))
			}
			s.taskDone()
		}
	}
}
