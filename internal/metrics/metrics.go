// ABOUTME: Prometheus instrumentation for discovery sessions
// ABOUTME: Collector implements discovery.Observer and exposes counters on a registry
package metrics

import (
	"net/http"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "bonjour"

// Collector counts session activity
type Collector struct {
	registry *prometheus.Registry

	sessions   *prometheus.CounterVec
	discovered prometheus.Counter
	resolved   prometheus.Counter
	failed     prometheus.Counter
	noServices prometheus.Counter
	finished   prometheus.Counter
	perSession prometheus.Histogram
}

var _ discovery.Observer = (*Collector)(nil)

// New creates a Collector with its own registry, which also carries the Go
// runtime and process collectors
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Discovery searches started, partitioned by service type",
		}, []string{"service_type"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "services_discovered_total",
			Help:      "Service instances reported by browsing",
		}),
		resolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "services_resolved_total",
			Help:      "Service instances resolved successfully",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "resolution_failures_total",
			Help:      "Service instances that did not resolve",
		}),
		noServices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "no_services_found_total",
			Help:      "Searches that timed out without discovering anything",
		}),
		finished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_finished_total",
			Help:      "Searches whose resolutions all completed",
		}),
		perSession: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "services_per_session",
			Help:      "Services discovered by each finished search",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.sessions, c.discovered, c.resolved, c.failed, c.noServices, c.finished, c.perSession,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

func (c *Collector) SessionStarted(serviceType, domain string) {
	c.sessions.WithLabelValues(serviceType).Inc()
}

func (c *Collector) ServiceDiscovered(name string) {
	c.discovered.Inc()
}

func (c *Collector) ServiceResolved(rec discovery.ServiceRecord) {
	c.resolved.Inc()
}

func (c *Collector) ResolutionFailed(name string, err error) {
	c.failed.Inc()
}

func (c *Collector) NoServicesFound() {
	c.noServices.Inc()
}

func (c *Collector) SessionFinished(discovered int) {
	c.finished.Inc()
	c.perSession.Observe(float64(discovered))
}
