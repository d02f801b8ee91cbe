package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "alarm_tracker_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultDropped = "dropped"
)

var (
	registerOnce sync.Once

	togglesTotal       *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	analyticsLatency   *prometheus.HistogramVec
	activeAlarms       prometheus.Gauge
	simulationTicks    prometheus.Counter
)

// Init registers the collectors with the default registry. Safe to call more
// than once; the helpers below are no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		togglesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "toggles_total",
				Help: "Alarm toggles by backend mode and result",
			},
			[]string{"mode", "result"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)
		analyticsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analytics_latency_seconds",
				Help:    "Range aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		activeAlarms = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "active_alarms",
			Help: "Number of alarms currently active",
		})
		simulationTicks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "simulation_ticks_total",
			Help: "Simulation ticks that toggled at least one alarm",
		})

		prometheus.MustRegister(
			togglesTotal,
			notificationsTotal,
			analyticsLatency,
			activeAlarms,
			simulationTicks,
		)
	})
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// IncToggle counts a toggle attempt.
func IncToggle(mode string, err error) {
	if togglesTotal != nil {
		togglesTotal.WithLabelValues(mode, resultOf(err)).Inc()
	}
}

// IncNotification counts a delivery attempt on a channel.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
}

// ObserveAnalytics records how long an aggregation took.
func ObserveAnalytics(source string, duration time.Duration) {
	if analyticsLatency != nil {
		analyticsLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// SetActiveAlarms publishes the current active count.
func SetActiveAlarms(n int) {
	if activeAlarms != nil {
		activeAlarms.Set(float64(n))
	}
}

// IncSimulationTick counts a simulation tick.
func IncSimulationTick() {
	if simulationTicks != nil {
		simulationTicks.Inc()
	}
}
