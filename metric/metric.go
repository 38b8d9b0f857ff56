// Package metric manages registration and exposure of platform metrics.
// Components create their own Prometheus collectors and register them here
// under a service name; a nil *Registry anywhere in the platform means
// metrics are disabled for that component.
package metric

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vincentyang1210/pion/errors"
)

// Registry manages the registration and lifecycle of metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewRegistry creates a metrics registry with Go runtime and process
// collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		registered:         make(map[string]prometheus.Collector),
	}
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}

func (r *Registry) register(service, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", service, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for service %s", name, service),
			"Registry", "register", "duplicate metric registration")
	}
	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "Registry", "register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.Wrap(err, "Registry", "register", "prometheus registration")
	}
	r.registered[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a service.
func (r *Registry) RegisterCounter(service, name string, counter prometheus.Counter) error {
	return r.register(service, name, counter)
}

// RegisterGauge registers a gauge metric for a service.
func (r *Registry) RegisterGauge(service, name string, gauge prometheus.Gauge) error {
	return r.register(service, name, gauge)
}

// RegisterHistogram registers a histogram metric for a service.
func (r *Registry) RegisterHistogram(service, name string, histogram prometheus.Histogram) error {
	return r.register(service, name, histogram)
}

// RegisterCounterVec registers a labelled counter for a service.
func (r *Registry) RegisterCounterVec(service, name string, vec *prometheus.CounterVec) error {
	return r.register(service, name, vec)
}

// Unregister removes a metric registered for a service.
func (r *Registry) Unregister(service, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", service, name)
	c, exists := r.registered[key]
	if !exists {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(c)
}
