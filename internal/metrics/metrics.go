package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/queue"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesEnqueued prometheus.Counter
	MessagesSent     prometheus.Counter
	MessagesFailed   prometheus.Counter
	MessagesRetried  prometheus.Counter
	BatchDuration    prometheus.Histogram
	QueueMessages    *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailqueue_messages_enqueued_total",
			Help: "Total number of messages accepted into the queue.",
		}),

		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailqueue_messages_sent_total",
			Help: "Total number of messages moved to sent.",
		}),

		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailqueue_messages_failed_total",
			Help: "Total number of messages parked in failed.",
		}),

		MessagesRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailqueue_messages_retried_total",
			Help: "Total number of failed attempts released back to pending.",
		}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailqueue_batch_duration_seconds",
			Help:    "Wall time of one drain batch, selection to last recorded outcome.",
			Buckets: prometheus.DefBuckets,
		}),

		QueueMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailqueue_queue_messages",
			Help: "Current number of stored messages per status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.MessagesEnqueued,
		m.MessagesSent,
		m.MessagesFailed,
		m.MessagesRetried,
		m.BatchDuration,
		m.QueueMessages,
	)

	return m
}

// Attach subscribes the counters to the manager's observer hooks.
func (m *Metrics) Attach(mgr *queue.Manager) {
	mgr.OnEnqueued(func(string) { m.MessagesEnqueued.Inc() })
	mgr.OnSent(func(string) { m.MessagesSent.Inc() })
	mgr.OnFailed(func(string, string) { m.MessagesFailed.Inc() })
	mgr.OnBatchProcessed(func(r domain.BatchResult) {
		m.MessagesRetried.Add(float64(r.Retried))
	})
}

// ObserveBatch records how long one drain took.
func (m *Metrics) ObserveBatch(d time.Duration) {
	m.BatchDuration.Observe(d.Seconds())
}

// SetStats publishes a status snapshot to the queue_messages gauge.
func (m *Metrics) SetStats(s domain.Stats) {
	m.QueueMessages.WithLabelValues(string(domain.StatusPending)).Set(float64(s.Pending))
	m.QueueMessages.WithLabelValues(string(domain.StatusInFlight)).Set(float64(s.InFlight))
	m.QueueMessages.WithLabelValues(string(domain.StatusSent)).Set(float64(s.Sent))
	m.QueueMessages.WithLabelValues(string(domain.StatusFailed)).Set(float64(s.Failed))
}
