package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	signin "github.com/goliatone/go-signin"
)

const namespace = "signin"

// Observer is a signin.Observer that exports submission metrics.
type Observer struct {
	Transitions *prometheus.CounterVec
	Settled     *prometheus.CounterVec
	Fallbacks   *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

var _ signin.Observer = (*Observer)(nil)

// NewObserver creates and registers the sign-in metrics on reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of submission state transitions by target state",
			},
			[]string{"to"},
		),
		Settled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of settled submissions by outcome and error kind",
			},
			[]string{"outcome", "kind"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_total",
				Help:      "Total number of submissions that ran the fallback, by outcome",
			},
			[]string{"outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Time from validation to settlement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(o.Transitions)
	reg.MustRegister(o.Settled)
	reg.MustRegister(o.Fallbacks)
	reg.MustRegister(o.Duration)

	return o
}

// OnTransition implements signin.Observer
func (o *Observer) OnTransition(_ context.Context, t signin.Transition) {
	o.Transitions.WithLabelValues(string(t.To)).Inc()

	if !t.To.IsTerminal() {
		return
	}

	outcome := "failure"
	if t.Succeeded() {
		outcome = "success"
	}

	kind := string(t.Classification.Kind)
	if kind == "" {
		kind = "none"
	}

	o.Settled.WithLabelValues(outcome, kind).Inc()
	o.Duration.WithLabelValues(outcome).Observe(t.Elapsed().Seconds())

	if t.Attempt.FallbackUsed {
		o.Fallbacks.WithLabelValues(outcome).Inc()
	}
}
