package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики брокерного слоя.
var (
	MessagesRetrieved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_retrieved_total",
		Help: "Messages pulled from a queue with basic.get",
	}, []string{"queue"})

	MessagesAcked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_acked_total",
		Help: "Messages positively acknowledged",
	}, []string{"queue"})

	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_rejected_total",
		Help: "Messages negatively acknowledged",
	}, []string{"queue", "requeue"})

	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_published_total",
		Help: "Messages published to a queue",
	}, []string{"queue"})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dead_letters_total",
		Help: "Envelopes written to the dead-letter queue",
	}, []string{"original_queue"})

	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_decode_failures_total",
		Help: "Deliveries that could not be decoded",
	}, []string{"queue"})

	BrokerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_broker_reconnects_total",
		Help: "Successful broker reconnections",
	})

	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_broker_connected",
		Help: "1 if the broker transport is open",
	})
)

// Метрики индексации и планировщика.
var (
	MessagesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_indexed_total",
		Help: "Messages indexed in Elasticsearch",
	})

	IndexFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_index_failures_total",
		Help: "Failed Elasticsearch index calls",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_job_duration_seconds",
		Help:    "Duration of scheduler job runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	JobMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_job_messages_total",
		Help: "Messages handled by scheduler jobs by outcome",
	}, []string{"job", "outcome"})

	HealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_dependency_healthy",
		Help: "Result of the last heartbeat check (1 healthy, 0 unhealthy)",
	}, []string{"dependency"})
)
