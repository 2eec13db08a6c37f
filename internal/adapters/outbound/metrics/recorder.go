// Package metrics records run outcomes in a private Prometheus registry and
// exports them for the node exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// Recorder holds the run metrics.
type Recorder struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	findings *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arboretum_runs_total",
				Help: "Fetcher and check test executions by outcome",
			},
			[]string{"kind", "name", "status"},
		),
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arboretum_findings_total",
				Help: "Check findings by kind",
			},
			[]string{"check", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arboretum_run_duration_seconds",
				Help:    "Duration of fetcher and check tests",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
			},
			[]string{"kind", "name"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arboretum_last_run_timestamp_seconds",
				Help: "Unix time the last run of each kind finished",
			},
			[]string{"kind"},
		),
	}
	r.registry.MustRegister(r.runs, r.findings, r.duration, r.lastRun)
	return r
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Record adds every result of report.
func (r *Recorder) Record(report *domain.RunReport) {
	kind := string(report.Kind)
	for _, res := range report.Results {
		name := res.Component + "." + res.Test
		r.runs.WithLabelValues(kind, name, string(res.Status)).Inc()
		r.duration.WithLabelValues(kind, name).Observe(res.Duration)
		for _, f := range res.Findings {
			r.findings.WithLabelValues(res.Component, string(f.Kind)).Inc()
		}
	}
	if !report.Finished.IsZero() {
		r.lastRun.WithLabelValues(kind).Set(float64(report.Finished.Unix()))
	}
}

// WriteTextfile writes the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
