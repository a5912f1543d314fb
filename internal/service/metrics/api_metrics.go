package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairwatch",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of dashboard endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairwatch",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by dashboard endpoint",
		},
		[]string{"endpoint"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pairwatch",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected websocket clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, StreamClients)
	})
}
