package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kartoza/gem-pricer/internal/apperr"
	"github.com/kartoza/gem-pricer/internal/predict"
)

// Metrics owns the service's Prometheus collectors on a private registry
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     prometheus.Histogram
	outcomes    *prometheus.CounterVec
	modelLoaded prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_prediction_requests_total",
			Help: "Total number of prediction requests served",
		}, []string{"method", "endpoint"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_latency_seconds",
			Help:    "Prediction latency (seconds)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_prediction_outcomes_total",
			Help: "Prediction calls by outcome",
		}, []string{"outcome"}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_load_status",
			Help: "Status of model loading (1=success, 0=failure)",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.outcomes,
		m.modelLoaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetModelLoaded records whether the model and schema loaded at startup
func (m *Metrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.modelLoaded.Set(1)
	} else {
		m.modelLoaded.Set(0)
	}
}

// Middleware counts every request by method and route template
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		m.requests.WithLabelValues(r.Method, endpoint).Inc()
		next.ServeHTTP(w, r)
	})
}

// Observe records latency and outcome of one prediction call
func (m *Metrics) Observe(o predict.Observation) {
	m.latency.Observe(o.Duration.Seconds())

	outcome := "success"
	if o.Err != nil {
		outcome = string(apperr.KindOf(o.Err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}
