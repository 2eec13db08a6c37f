package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const tracerName = "github.com/ComplianceAsCode/auditree-arboretum/internal/application"

// Environment is what the fetch and check services share. Config, Locker
// and Creds are required; the rest is optional.
type Environment struct {
	Config domain.Config
	Locker domain.EvidenceLocker
	Creds  domain.Credentials

	// LockerPath keys the run history.
	LockerPath string
	History    domain.RunHistory
	Recorder   domain.RunRecorder
	Tracer     trace.TracerProvider
	Now        domain.Clock
	Log        *zap.Logger
}

func (e *Environment) withDefaults() Environment {
	out := *e
	if out.Tracer == nil {
		out.Tracer = noop.NewTracerProvider()
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.Log == nil {
		out.Log = zap.NewNop()
	}
	return out
}

func (e *Environment) newRun(component string) *Run {
	return NewRun(e.Config, e.Locker, e.Creds, e.Log.With(zap.String("component", component)), e.Now().UTC())
}

func (e *Environment) newReport(kind domain.RunKind) *domain.RunReport {
	return &domain.RunReport{ID: uuid.NewString(), Kind: kind, Started: e.Now().UTC()}
}

// span starts a span for one component test.
func (e *Environment) span(ctx context.Context, kind domain.RunKind, component, test string) (context.Context, trace.Span) {
	return e.Tracer.Tracer(tracerName).Start(ctx, string(kind)+" "+component,
		trace.WithAttributes(
			attribute.String("arboretum.component", component),
			attribute.String("arboretum.test", test),
		))
}

func endSpan(span trace.Span, res domain.TestResult) {
	span.SetAttributes(attribute.String("arboretum.status", string(res.Status)))
	if res.Error != "" {
		span.SetStatus(codes.Error, res.Error)
	}
	span.End()
}

// commit commits the locker when anything was written and stamps the
// report with the resulting HEAD.
func (e *Environment) commit(report *domain.RunReport, message string, wrote bool) error {
	if wrote {
		if err := e.Locker.Commit(message); err != nil {
			return err
		}
	}
	hash, err := e.Locker.CommitHash()
	if err != nil {
		e.Log.Debug("locker has no commits yet", zap.Error(err))
		return nil
	}
	report.Commit = hash
	return nil
}

// finish stamps the report and hands it to the recorder and the history.
// A history failure is logged, not returned: the run itself succeeded.
func (e *Environment) finish(report *domain.RunReport) {
	report.Finished = e.Now().UTC()
	if e.Recorder != nil {
		e.Recorder.Record(report)
	}
	if e.History != nil && e.LockerPath != "" {
		if err := e.History.Save(e.LockerPath, *report); err != nil {
			e.Log.Warn("saving run history", zap.Error(err))
		}
	}
	totals := report.Totals()
	e.Log.Info(fmt.Sprintf("%s run finished", report.Kind),
		zap.String("run_id", report.ID),
		zap.Int("pass", totals[domain.StatusPass]),
		zap.Int("warn", totals[domain.StatusWarn]),
		zap.Int("fail", totals[domain.StatusFail]),
		zap.Int("error", totals[domain.StatusError]),
		zap.Int("skip", totals[domain.StatusSkip]),
	)
}
