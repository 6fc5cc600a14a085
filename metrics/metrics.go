// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ventboard"

var (
	// Registry holds the application collectors plus Go and process stats.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12), // 2ms to ~4s
		},
		[]string{"method", "route"},
	)

	veGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "ve_granted_total",
			Help:      "Vent Energy credited, by reason.",
		},
		[]string{"reason"},
	)

	veCapped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "ve_capped_total",
			Help:      "Vent Energy withheld by a daily cap, by reason.",
		},
		[]string{"reason"},
	)

	reactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reactions_total",
			Help:      "Reaction requests by kind and outcome (new, switched, unchanged, conflict).",
		},
		[]string{"kind", "outcome"},
	)

	rantsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rants_created_total",
			Help:      "Rants created by author mode.",
		},
		[]string{"mode"},
	)

	replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "replies_total",
			Help:      "Replies appended, by depth (top, nested) and outcome.",
		},
		[]string{"depth", "outcome"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Buy and equip attempts by outcome.",
		},
		[]string{"op", "outcome"},
	)

	sseClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Currently connected live feed clients.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpDuration,
		veGranted, veCapped,
		reactions, rantsCreated, replies,
		storeOps, sseClients,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// VEGranted records a ledger credit; withheld is the part the cap refused.
func VEGranted(reason string, added, withheld int64) {
	if added > 0 {
		veGranted.WithLabelValues(reason).Add(float64(added))
	}
	if withheld > 0 {
		veCapped.WithLabelValues(reason).Add(float64(withheld))
	}
}

func Reaction(kind, outcome string) { reactions.WithLabelValues(kind, outcome).Inc() }

func RantCreated(mode string) { rantsCreated.WithLabelValues(mode).Inc() }

func Reply(depth, outcome string) { replies.WithLabelValues(depth, outcome).Inc() }

func Store(op, outcome string) { storeOps.WithLabelValues(op, outcome).Inc() }

func SSEConnected()    { sseClients.Inc() }
func SSEDisconnected() { sseClients.Dec() }
