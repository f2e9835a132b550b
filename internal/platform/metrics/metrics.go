package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple processes never
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	settlements      *prometheus.CounterVec
	settlementTime   *prometheus.HistogramVec
	eligibilityFired *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	outboxRelayed    prometheus.Counter
	balancePushes    prometheus.Counter
}

func New(serviceName string) *Collector {
	prefix := strings.ReplaceAll(serviceName, "-", "_")
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_view_settlements_total",
			Help: "View settlements by feedback kind.",
		}, []string{"result"}),
		settlementTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_view_settlement_duration_seconds",
			Help:    "Time from eligibility to ledger answer.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		eligibilityFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_eligibility_fired_total",
			Help: "Eligibility timers that fired, by trigger.",
		}, []string{"trigger"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_viewing_sessions_active",
			Help: "Open viewing sessions.",
		}),
		outboxRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_ledger_outbox_relayed_total",
			Help: "Ledger outbox rows relayed to the event bus.",
		}),
		balancePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_balance_pushes_total",
			Help: "Balance snapshots pushed to viewers.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpDuration,
		c.settlements,
		c.settlementTime,
		c.eligibilityFired,
		c.activeSessions,
		c.outboxRelayed,
		c.balancePushes,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveSettlement(result string, elapsed time.Duration) {
	c.settlements.WithLabelValues(result).Inc()
	c.settlementTime.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveEligibilityFired(trigger string) {
	c.eligibilityFired.WithLabelValues(trigger).Inc()
}

func (c *Collector) SessionOpened() { c.activeSessions.Inc() }
func (c *Collector) SessionClosed() { c.activeSessions.Dec() }

func (c *Collector) OutboxRelayed(n int) { c.outboxRelayed.Add(float64(n)) }

func (c *Collector) BalancePushed() { c.balancePushes.Inc() }

// Middleware records request counts and latency under the matched route
// pattern rather than the raw path.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
