// Package metrics exposes Prometheus counters for the messaging core. All
// methods are safe on a nil *Metrics so components can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "familycircle"

// Poll tick outcomes
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	messagesSent *prometheus.CounterVec
	chatsCreated *prometheus.CounterVec
	pollTicks    *prometheus.CounterVec
	openViews    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages sent, by outcome.",
		}, []string{"outcome"}),
		chatsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chats_created_total",
			Help:      "Chat creation attempts, by chat type and outcome.",
		}, []string{"type", "outcome"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Message poll ticks, by outcome.",
		}, []string{"outcome"}),
		openViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_chat_views",
			Help:      "Chat detail views currently mounted.",
		}),
	}
	reg.MustRegister(m.messagesSent, m.chatsCreated, m.pollTicks, m.openViews)
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func (m *Metrics) MessageSent(err error) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ChatCreated(chatType string, err error) {
	if m == nil {
		return
	}
	m.chatsCreated.WithLabelValues(chatType, outcome(err)).Inc()
}

func (m *Metrics) PollTick(result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) ViewOpened() {
	if m == nil {
		return
	}
	m.openViews.Inc()
}

func (m *Metrics) ViewClosed() {
	if m == nil {
		return
	}
	m.openViews.Dec()
}
