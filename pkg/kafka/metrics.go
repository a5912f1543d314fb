package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	producerMessages *prometheus.CounterVec
	producerBytes    *prometheus.CounterVec
	producerLatency  *prometheus.HistogramVec

	consumerMessages *prometheus.CounterVec
	consumerLatency  *prometheus.HistogramVec
	consumerQueue    *prometheus.GaugeVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		producerMessages = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pairwatch_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "result"},
		)
		producerBytes = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pairwatch_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic"},
		)
		producerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pairwatch_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)
		consumerMessages = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pairwatch_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pairwatch_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		consumerQueue = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pairwatch_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
	})
}

func observePublish(topic string, bytes int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, result).Inc()
	producerBytes.WithLabelValues(topic).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandle(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerMessages.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
