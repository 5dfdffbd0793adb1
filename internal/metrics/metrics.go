// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cinestream"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	loginAttempts   *prometheus.CounterVec
	movieViews      prometheus.Counter
	moviesCreated   prometheus.Counter
	moviesDeleted   prometheus.Counter
	catalogMovies   prometheus.Gauge
	locksCleared    prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers every instrument plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Admin login attempts by result.",
		}, []string{"result"}),
		movieViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movie_views_total",
			Help:      "Movie detail views served.",
		}),
		moviesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movies_created_total",
			Help:      "Movies added to the catalog.",
		}),
		moviesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movies_deleted_total",
			Help:      "Movies removed from the catalog.",
		}),
		catalogMovies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_movies_total",
			Help:      "Movies currently in the catalog.",
		}),
		locksCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_locks_cleared_total",
			Help:      "Expired account locks cleared by the sweeper.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.loginAttempts,
		m.movieViews,
		m.moviesCreated,
		m.moviesDeleted,
		m.catalogMovies,
		m.locksCleared,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// LoginAttempt counts one login outcome.
func (m *Metrics) LoginAttempt(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

// MovieViewed counts one movie detail read.
func (m *Metrics) MovieViewed() { m.movieViews.Inc() }

// MovieCreated counts one catalog insertion.
func (m *Metrics) MovieCreated() { m.moviesCreated.Inc() }

// MovieDeleted counts one catalog removal.
func (m *Metrics) MovieDeleted() { m.moviesDeleted.Inc() }

// SetCatalogSize records the current number of movies.
func (m *Metrics) SetCatalogSize(n int64) {
	m.catalogMovies.Set(float64(n))
}

// LocksCleared adds n to the swept-lock counter.
func (m *Metrics) LocksCleared(n int64) {
	m.locksCleared.Add(float64(n))
}

// RegisterPool exports connection-pool statistics read from stat on every scrape.
func (m *Metrics) RegisterPool(stat func() *pgxpool.Stat) {
	gauge := func(name, help string, read func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			s := stat()
			if s == nil {
				return 0
			}
			return read(s)
		})
	}
	m.registry.MustRegister(
		gauge("total_conns", "Connections currently open.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections checked out.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Idle connections.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("max_conns", "Pool size limit.", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware observes request latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
