package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalyticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowsentry",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of analytics endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowsentry",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Errors by analytics endpoint",
		},
		[]string{"endpoint"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowsentry",
			Subsystem: "signals",
			Name:      "emitted_total",
			Help:      "Scenario signals emitted by severity",
		},
		[]string{"scenario", "severity"},
	)

	AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowsentry",
			Subsystem: "alerts",
			Name:      "dispatched_total",
			Help:      "Alerts dispatched per channel by severity",
		},
		[]string{"channel", "severity"},
	)

	AnomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowsentry",
			Subsystem: "anomalies",
			Name:      "detected_total",
			Help:      "Anomalies detected per method by severity",
		},
		[]string{"method", "severity"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalyticsLatency, AnalyticsErrors, SignalsEmitted, AlertsDispatched, AnomaliesDetected)
	})
}
