// Package metrics exposes counters for reconcile outcomes and submission
// attempts. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adagent"

// Reconcile outcome labels.
const (
	OutcomeOpening    = "opening"
	OutcomeModel      = "model"
	OutcomeRepaired   = "repaired"
	OutcomeMalformed  = "malformed"
	OutcomeModelError = "model_error"
	OutcomeTimeout    = "timeout"
	OutcomePanic      = "panic"
)

type Metrics struct {
	reconcile   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	musicSteps  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Turn responses produced by the reconciler, by source.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_attempts_total",
			Help:      "Campaign submission calls, by result code.",
		}, []string{"result"}),
		musicSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "music_subflow_total",
			Help:      "Music sub-flow platform calls, by operation and result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.reconcile, m.submissions, m.musicSteps)
	}
	return m
}

func (m *Metrics) ReconcileOutcome(outcome string) {
	if m == nil {
		return
	}
	m.reconcile.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SubmissionAttempt(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) MusicStep(op, result string) {
	if m == nil {
		return
	}
	m.musicSteps.WithLabelValues(op, result).Inc()
}

// ReconcileCounter returns the counter behind outcome, mainly for tests.
func (m *Metrics) ReconcileCounter(outcome string) prometheus.Counter {
	return m.reconcile.WithLabelValues(outcome)
}

func (m *Metrics) SubmissionCounter(result string) prometheus.Counter {
	return m.submissions.WithLabelValues(result)
}

func (m *Metrics) MusicStepCounter(op, result string) prometheus.Counter {
	return m.musicSteps.WithLabelValues(op, result)
}

// Summary renders every counter gathered from g as "name{labels} value"
// lines, sorted the way the gatherer returns them.
func Summary(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var sb strings.Builder
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			fmt.Fprintf(&sb, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue())
		}
	}
	return sb.String(), nil
}
