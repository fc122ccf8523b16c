package kiosk

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeCanceled = "canceled"
)

// Metrics 刷新相关的指标
type Metrics struct {
	refreshes *prometheus.CounterVec
	duration  prometheus.Histogram
	buildings prometheus.Gauge
}

// NewMetrics 注册到 reg；同名指标已注册时复用已有的收集器
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Name:      "refresh_total",
			Help:      "Snapshot refreshes by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kiosk",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching the snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		buildings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kiosk",
			Name:      "buildings",
			Help:      "Buildings in the cached snapshot.",
		}),
	}
	if reg == nil {
		return m
	}
	m.refreshes = register(reg, m.refreshes)
	m.duration = register(reg, m.duration)
	m.buildings = register(reg, m.buildings)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observe(outcome string, took time.Duration, buildings int) {
	if m == nil {
		return
	}
	m.duration.Observe(took.Seconds())
	m.refreshes.WithLabelValues(outcome).Inc()
	if outcome == outcomeSuccess {
		m.buildings.Set(float64(buildings))
	}
}

func (m *Metrics) setBuildings(n int) {
	if m == nil {
		return
	}
	m.buildings.Set(float64(n))
}
