// Package metrics holds the Prometheus collectors shared by the server and the worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blanball"

// Registry is the dedicated registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	NotificationsCreated = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notifications persisted, by message type.",
	}, []string{"message_type"})

	NotificationFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Swallowed fanout failures, by stage (persist, enqueue, patch).",
	}, []string{"stage"})

	PushesDelivered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pushes_delivered_total",
		Help:      "Messages handed to local WebSocket connections.",
	})

	PushesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pushes_dropped_total",
		Help:      "Messages dropped because a connection's send buffer was full.",
	})

	ConnectedClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connected_clients",
		Help:      "Open WebSocket connections on this instance.",
	})

	JobsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Background jobs handled, by type and outcome (ok, retry, dead).",
	}, []string{"type", "outcome"})

	JobDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Background job handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	SweepRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Scheduled sweep executions, by sweep and outcome.",
	}, []string{"sweep", "outcome"})

	SweepRowFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_row_failures_total",
		Help:      "Rows a sweep skipped after an error.",
	}, []string{"sweep"})

	MembershipOps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_operations_total",
		Help:      "Roster mutations, by operation and result code.",
	}, []string{"op", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
