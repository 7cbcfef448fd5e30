// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package metrics records signing session outcomes and step latencies in a
// private Prometheus registry that can be dumped to a node_exporter textfile.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signpdf-cmd/pkg/signerr"
)

type Recorder struct {
	reg *prometheus.Registry

	sessions    *prometheus.CounterVec
	steps       *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signpdf_sessions_total",
			Help: "Sesiones de firma por resultado",
		}, []string{"outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signpdf_step_duration_seconds",
			Help:    "Duracion de cada paso de la sesion de firma",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signpdf_last_success_timestamp_seconds",
			Help: "Instante de la ultima firma completada",
		}),
	}
	r.reg.MustRegister(r.sessions, r.steps, r.lastSuccess)
	return r
}

// ObserveStep records the time spent reaching state step.
func (r *Recorder) ObserveStep(step string, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(step).Observe(d.Seconds())
}

// ObserveOutcome counts one finished session.
func (r *Recorder) ObserveOutcome(err error, at time.Time) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

// Outcome is the label value for err.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch signerr.KindOf(err) {
	case signerr.KindTransport:
		return "transport"
	case signerr.KindRemoteRejection:
		return "rejected"
	case signerr.KindMalformedResponse:
		return "malformed"
	case signerr.KindOperatorCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// WriteTextfile dumps the registry to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
