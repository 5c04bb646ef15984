package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	TechniquesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fbksd_techniques_total",
			Help: "Total number of registered techniques by kind",
		},
		[]string{"kind"},
	)

	WorkspacesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fbksd_workspaces_total",
			Help: "Total number of workspaces by status",
		},
		[]string{"status"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fbksd_queue_depth",
			Help: "Pending tasks by priority class",
		},
		[]string{"priority"},
	)

	MailQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fbksd_mail_queue_depth",
			Help: "Pending outbound mail messages",
		},
	)

	// RPC server metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbksd_rpc_requests_total",
			Help: "Total RPC requests by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbksd_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Consumer/sandbox metrics
	TasksDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbksd_tasks_dispatched_total",
			Help: "Total tasks dispatched to a sandboxed container by kind",
		},
		[]string{"kind"},
	)

	ContainerExitCodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbksd_container_exit_code_total",
			Help: "Container run exit codes by task kind",
		},
		[]string{"kind", "exit_code"},
	)

	ContainerRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbksd_container_run_duration_seconds",
			Help:    "Time a sandboxed container ran for, by task kind",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	// Mailer metrics
	MailSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fbksd_mail_sent_total",
			Help: "Total notification emails sent",
		},
	)

	MailFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fbksd_mail_failed_total",
			Help: "Total notification emails that failed to send",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TechniquesTotal,
		WorkspacesTotal,
		QueueDepth,
		MailQueueDepth,
		RPCRequestsTotal,
		RPCRequestDuration,
		TasksDispatchedTotal,
		ContainerExitCodeTotal,
		ContainerRunDuration,
		MailSentTotal,
		MailFailedTotal,
	)
}

// Handler returns the Prometheus HTTP handler, served on a loopback
// port by the consumer and RPC server; it is additive and never
// required for correctness.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an operation and reports it to a histogram on Observe.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
