package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks webhook reconciliation outcomes.
type PaymentMetrics struct {
	callbacks   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewPaymentMetrics registers payment reconciliation metrics.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment provider callbacks by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions applied.",
	}, []string{"from", "to"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_callback_duration_seconds",
		Help:    "Duration of payment callback handling.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(callbacks, transitions, duration)
	return &PaymentMetrics{
		callbacks:   callbacks,
		transitions: transitions,
		duration:    duration,
	}
}

// IncCallback counts a callback with the given outcome label.
func (p *PaymentMetrics) IncCallback(outcome string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTransition counts an applied order transition.
func (p *PaymentMetrics) IncTransition(from, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveCallbackDuration records handling latency per outcome.
func (p *PaymentMetrics) ObserveCallbackDuration(outcome string, d time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(outcome)).Observe(d.Seconds())
}
