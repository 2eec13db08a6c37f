package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// FetchOptions tune one fetch run.
type FetchOptions struct {
	// Force refetches evidence that is still within its TTL.
	Force bool
	// NoCommit leaves the locker changes uncommitted.
	NoCommit bool
}

// FetchService runs fetchers sequentially in registration order:
// select -> fetch each (skipping fresh evidence) -> commit locker -> record.
type FetchService struct {
	env      Environment
	registry *Registry
}

func NewFetchService(env Environment, registry *Registry) *FetchService {
	return &FetchService{env: env.withDefaults(), registry: registry}
}

// Fetch runs the named fetchers, or all of them. A failing fetcher is
// reported as an errored result and the run carries on.
func (s *FetchService) Fetch(ctx context.Context, names []string, opts FetchOptions) (*domain.RunReport, error) {
	fetchers, err := s.registry.Fetchers(names...)
	if err != nil {
		return nil, err
	}

	report := s.env.newReport(domain.RunFetch)
	wrote := false
	for _, f := range fetchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, written := s.runOne(ctx, f, opts)
		wrote = wrote || written
		report.Results = append(report.Results, res)
	}

	if !opts.NoCommit {
		msg := fmt.Sprintf("Fetch run %s\n\n%d fetchers", report.ID, len(fetchers))
		if err := s.env.commit(report, msg, wrote); err != nil {
			return nil, fmt.Errorf("committing fetched evidence: %w", err)
		}
	}
	s.env.finish(report)
	return report, nil
}

func (s *FetchService) runOne(ctx context.Context, f Fetcher, opts FetchOptions) (domain.TestResult, bool) {
	ctx, span := s.env.span(ctx, domain.RunFetch, f.Name(), "fetch")
	run := s.env.newRun(f.Name())
	run.Force = opts.Force

	start := s.env.Now()
	err := f.Fetch(ctx, run)
	res := domain.TestResult{
		Component: f.Name(),
		Test:      "Fetch",
		Title:     f.Description(),
		Evidence:  append(run.Written(), run.Skipped()...),
		Duration:  s.env.Now().Sub(start).Seconds(),
	}
	switch {
	case err != nil:
		res.Status = domain.StatusError
		res.Error = err.Error()
		run.Log.Error("fetcher failed", zap.Error(err))
	case len(run.Written()) == 0 && len(run.Skipped()) > 0:
		res.Status = domain.StatusSkip
		run.Log.Info("evidence fresh, nothing fetched", zap.Int("skipped", len(run.Skipped())))
	default:
		res.Status = domain.StatusPass
		run.Log.Info("fetched", zap.Int("written", len(run.Written())), zap.Int("skipped", len(run.Skipped())))
	}
	endSpan(span, res)
	return res, len(run.Written()) > 0
}
