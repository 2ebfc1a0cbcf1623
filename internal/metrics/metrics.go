package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio_tracker"

// Metrics groups the collectors of both loops. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	quotesAppended *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	passes         *prometheus.CounterVec
	windowSize     prometheus.Gauge
	portfolioIndex prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Rotation cycles run, by provider.",
		}, []string{"provider"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_failures_total",
			Help: "Symbols that could not be fetched, by provider.",
		}, []string{"provider"}),
		quotesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quotes_appended_total",
			Help: "Quotes written to the record store, by provider.",
		}, []string{"provider"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_errors_total",
			Help: "Record store failures, by loop.",
		}, []string{"loop"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "aggregation_passes_total",
			Help: "Aggregation passes, by result.",
		}, []string{"result"}),
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "window_timestamps",
			Help: "Distinct timestamps in the current window.",
		}),
		portfolioIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "portfolio_index",
			Help: "Latest normalized portfolio index.",
		}),
	}
	m.registry.MustRegister(
		m.cycles, m.fetchFailures, m.quotesAppended, m.storeErrors,
		m.passes, m.windowSize, m.portfolioIndex,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveCycle(provider string, fetched, failed int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(provider).Inc()
	m.fetchFailures.WithLabelValues(provider).Add(float64(failed))
	m.quotesAppended.WithLabelValues(provider).Add(float64(fetched))
}

func (m *Metrics) StoreError(loop string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(loop).Inc()
}

func (m *Metrics) ObservePass(result string, timestamps int, index float64) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
	if result == "ok" {
		m.windowSize.Set(float64(timestamps))
		m.portfolioIndex.Set(index)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /health.
type Server struct {
	server *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("[ERROR] health handler: %v", err)
		}
	}))
	mux.Handle("/metrics", m.Handler())
	return &Server{server: &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}}
}

// Listen blocks serving until Shutdown.
func (s *Server) Listen() {
	log.Printf("[INFO] metrics listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[ERROR] metrics server: %v", err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
