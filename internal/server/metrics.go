package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/bebetter/internal/store"
)

const metricsNamespace = "bebetter"

// Metrics holds the server's Prometheus collectors. Each Server owns its
// own registry so several servers can coexist in one process (tests).
type Metrics struct {
	Registry *prometheus.Registry

	// RequestsTotal counts requests by route and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures handler latency by route.
	RequestDuration *prometheus.HistogramVec

	// ModifyTotal counts modify requests by result (applied, replayed).
	ModifyTotal *prometheus.CounterVec

	// LoginThrottled counts logins rejected by the rate limiter.
	LoginThrottled prometheus.Counter
}

func newMetrics(st *store.Store) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ModifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "modify_total",
			Help:      "Modify requests by result.",
		}, []string{"result"}),
		LoginThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "auth",
			Name:      "login_throttled_total",
			Help:      "Login attempts rejected by the rate limiter.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "users",
		Help:      "Registered users.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := st.CountUsers(ctx)
		if err != nil {
			slog.Warn("metrics: count users failed", "error", err)
			return 0
		}
		return float64(n)
	})

	return m
}

// middleware records per-route count and latency.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, statusLabel(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
