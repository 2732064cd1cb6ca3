package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// CheckoutMetrics holds checkout state machine metrics. A nil *CheckoutMetrics
// is valid and records nothing.
type CheckoutMetrics struct {
	Transitions          *prometheus.CounterVec
	Sessions             *prometheus.CounterVec
	RejectedTransitions  *prometheus.CounterVec
	SuppressedTimers     *prometheus.CounterVec
	DuplicateSuccesses   prometheus.Counter
	SessionsInProcessing prometheus.Gauge
}

// New registers checkout metrics with reg. Pass prometheus.DefaultRegisterer
// to expose them on /metrics.
func New(namespace string, reg prometheus.Registerer) *CheckoutMetrics {
	if namespace == "" {
		namespace = "upgrade_checkout"
	}
	factory := promauto.With(reg)

	return &CheckoutMetrics{
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "transitions_total",
				Help:      "Total number of checkout stage transitions",
			},
			[]string{"from", "to"},
		),
		Sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "sessions_total",
				Help:      "Checkout sessions by outcome",
			},
			[]string{"outcome"}, // opened, completed, abandoned
		),
		RejectedTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "rejected_transitions_total",
				Help:      "Operations ignored because the current stage does not allow them",
			},
			[]string{"operation", "stage"},
		),
		SuppressedTimers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "suppressed_timers_total",
				Help:      "Timer callbacks dropped because their session was superseded",
			},
			[]string{"timer"},
		),
		DuplicateSuccesses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "duplicate_success_notifications_total",
				Help:      "Success notifications withheld because the session was already notified",
			},
		),
		SessionsInProcessing: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "sessions_processing",
				Help:      "Sessions currently waiting on the simulated provider",
			},
		),
	}
}

func (m *CheckoutMetrics) ObserveTransition(from, to models.Stage) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
	if to == models.StageProcessing && from != models.StageProcessing {
		m.SessionsInProcessing.Inc()
	}
	if from == models.StageProcessing && to != models.StageProcessing {
		m.SessionsInProcessing.Dec()
	}
}

func (m *CheckoutMetrics) SessionOpened() { m.session("opened") }

func (m *CheckoutMetrics) SessionCompleted() { m.session("completed") }

func (m *CheckoutMetrics) SessionAbandoned() { m.session("abandoned") }

func (m *CheckoutMetrics) session(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) TransitionRejected(operation string, stage models.Stage) {
	if m == nil {
		return
	}
	m.RejectedTransitions.WithLabelValues(operation, string(stage)).Inc()
}

func (m *CheckoutMetrics) TimerSuppressed(timer string) {
	if m == nil {
		return
	}
	m.SuppressedTimers.WithLabelValues(timer).Inc()
}

func (m *CheckoutMetrics) DuplicateSuccess() {
	if m == nil {
		return
	}
	m.DuplicateSuccesses.Inc()
}
