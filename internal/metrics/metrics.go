package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "runnersurfers"

// Metrics owns a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	fixes         *prometheus.CounterVec
	activeRuns    prometheus.Gauge
	runsCompleted prometheus.Counter
	runDistance   prometheus.Histogram
	scoreAwarded  prometheus.Counter
	coinsAwarded  prometheus.Counter
	levelUps      prometheus.Counter
	syncResults   *prometheus.CounterVec
	outboxDepth   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"endpoint", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"endpoint", "method"}),
		fixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gps_fixes_total",
			Help:      "GPS fixes processed, by filter verdict",
		}, []string{"verdict"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently being tracked",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Runs ended and rewarded",
		}),
		runDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_distance_km",
			Help:      "Distance of completed runs",
			Buckets:   []float64{0.5, 1, 2, 5, 7, 10, 15, 21, 42},
		}),
		scoreAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_awarded_total",
			Help:      "Score awarded at run end",
		}),
		coinsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_awarded_total",
			Help:      "Coins awarded at run end, quests included",
		}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Levels gained",
		}),
		syncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_sync_total",
			Help:      "Run persistence attempts, by outcome",
		}, []string{"outcome"}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_depth",
			Help:      "Entries waiting for redelivery",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.fixes,
		m.activeRuns,
		m.runsCompleted,
		m.runDistance,
		m.scoreAwarded,
		m.coinsAwarded,
		m.levelUps,
		m.syncResults,
		m.outboxDepth,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FixProcessed(verdict string) {
	if m == nil || verdict == "" {
		return
	}
	m.fixes.WithLabelValues(verdict).Inc()
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunAbandoned is for runs that stop without being rewarded.
func (m *Metrics) RunAbandoned() {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
}

func (m *Metrics) RunCompleted(distanceKm float64, score, coins int64, levels int) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runsCompleted.Inc()
	m.runDistance.Observe(distanceKm)
	m.scoreAwarded.Add(float64(score))
	m.coinsAwarded.Add(float64(coins))
	m.levelUps.Add(float64(levels))
}

func (m *Metrics) SyncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.syncResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OutboxDepth(n int) {
	if m == nil {
		return
	}
	m.outboxDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(h)
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		endpoint := c.Route().Path
		method := c.Method()
		status := strconv.Itoa(c.Response().StatusCode())
		m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
		m.httpDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
		return err
	}
}
