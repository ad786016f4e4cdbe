package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the complaint lifecycle.
type Metrics struct {
	// Lifecycle operations by transition and outcome
	Transitions *prometheus.CounterVec

	// Locks released by the sweeper or on read
	LocksReleased *prometheus.CounterVec

	// Notification deliveries by outcome
	Notifications *prometheus.CounterVec

	// Event publications by outcome
	Events *prometheus.CounterVec
}

// New creates the lifecycle metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_transitions_total",
			Help: "Complaint lifecycle operations by transition and outcome",
		}, []string{"transition", "outcome"}), // outcome: "ok" or an error kind

		LocksReleased: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_locks_released_total",
			Help: "Expired complaint locks released, by trigger",
		}, []string{"trigger"}), // trigger: "sweeper", "read"

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_notifications_total",
			Help: "Notification deliveries by outcome",
		}, []string{"outcome"}), // outcome: "sent", "skipped", "failed"

		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_events_total",
			Help: "Domain event publications by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// IncrementTransition records one lifecycle operation.
func (m *Metrics) IncrementTransition(transition, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(transition, outcome).Inc()
	}
}

// AddLocksReleased records n released locks.
func (m *Metrics) AddLocksReleased(trigger string, n int) {
	if m != nil && n > 0 {
		m.LocksReleased.WithLabelValues(trigger).Add(float64(n))
	}
}

// IncrementNotification records a notification outcome.
func (m *Metrics) IncrementNotification(outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome).Inc()
	}
}

// IncrementEvent records an event publication outcome.
func (m *Metrics) IncrementEvent(eventType, outcome string) {
	if m != nil {
		m.Events.WithLabelValues(eventType, outcome).Inc()
	}
}
