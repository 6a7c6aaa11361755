package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check results.
const (
	CheckOK      = "ok"
	CheckFailed  = "fetch_error"
	CheckSkipped = "gated"
)

// Notification results.
const (
	NotifySent   = "sent"
	NotifyFailed = "failed"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	checks        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	playerCount   prometheus.Gauge
	checkInterval prometheus.Gauge
	cycleDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seedping_checks_total", Help: "Monitor cycles by result"},
			[]string{"result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seedping_notifications_total", Help: "Seed messages by result"},
			[]string{"result"},
		),
		playerCount: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "seedping_player_count", Help: "Last observed player count"},
		),
		checkInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "seedping_check_interval_seconds", Help: "Current check interval"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seedping_cycle_duration_seconds",
				Help:    "Time spent in one fetch/decide/notify cycle",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
	m.registry.MustRegister(m.checks, m.notifications, m.playerCount, m.checkInterval, m.cycleDuration)
	return m
}

// The recorders below are safe on a nil *Metrics.

func (m *Metrics) Check(result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) PlayerCount(n int) {
	if m == nil {
		return
	}
	m.playerCount.Set(float64(n))
}

func (m *Metrics) CheckInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.checkInterval.Set(d.Seconds())
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
