package folio

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// registerOnce guards the default registry, which panics on duplicate
	// registration when several Apps start in one process (tests).
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "HTTP requests by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	slugProbes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_slug_probes",
			Help:    "Existence probes needed to allocate a slug.",
			Buckets: []float64{1, 2, 3, 5, 10, 25},
		},
		[]string{"kind"},
	)

	slugConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_slug_conflicts_total",
			Help: "Writes rejected by the unique slug index.",
		},
		[]string{"kind"},
	)
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, slugProbes, slugConflicts)
	})
}

// metricsMiddleware records request counts and latency keyed by the route
// template, never the raw path, to keep label cardinality bounded.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else {
				status = statusFor(err)
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
