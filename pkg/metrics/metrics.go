package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// View refresh metrics
	Revalidations   *prometheus.CounterVec
	ListingCache    *prometheus.CounterVec
	PublishFailures prometheus.Counter

	// Notification metrics
	EmailsSent *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg. A nil
// reg means the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of executed commands by outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of commands",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"command"}),
		Revalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidations_total",
			Help:      "Total number of view refresh signals by origin",
		}, []string{"path", "origin"}),
		ListingCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_cache_requests_total",
			Help:      "Listing cache lookups by result",
		}, []string{"path", "result"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_publish_failures_total",
			Help:      "Total number of failed broker publishes",
		}),
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of notification e-mails by status",
		}, []string{"status"}),
	}
}

// ObserveCommand records the outcome and latency of a command. Safe on a
// nil receiver.
func (m *Metrics) ObserveCommand(command, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRevalidation(path, origin string) {
	if m == nil {
		return
	}
	m.Revalidations.WithLabelValues(path, origin).Inc()
}

func (m *Metrics) ObserveListingCache(path string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ListingCache.WithLabelValues(path, result).Inc()
}

func (m *Metrics) ObservePublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Metrics) ObserveEmail(status string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(status).Inc()
}
