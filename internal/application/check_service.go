package application

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// CheckOptions tune one check run.
type CheckOptions struct {
	// IgnoreTTL lets checks read evidence past its TTL.
	IgnoreTTL bool
	NoCommit  bool
}

// CheckService runs checks sequentially in registration order:
// select -> run each test -> render report evidence -> commit locker -> record.
type CheckService struct {
	env      Environment
	registry *Registry
	renderer domain.ReportRenderer
}

func NewCheckService(env Environment, registry *Registry, renderer domain.ReportRenderer) *CheckService {
	return &CheckService{env: env.withDefaults(), registry: registry, renderer: renderer}
}

// Check runs the named checks, or all of them, and writes one report per
// check to reports/<category>/<name>.
func (s *CheckService) Check(ctx context.Context, names []string, opts CheckOptions) (*domain.RunReport, error) {
	checks, err := s.registry.Checks(names...)
	if err != nil {
		return nil, err
	}

	report := s.env.newReport(domain.RunCheck)
	wrote := false
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, checkReport := s.runCheck(ctx, c, opts)
		report.Results = append(report.Results, results...)

		if s.renderer == nil {
			continue
		}
		spec := c.Report()
		ev := domain.NewReportEvidence(spec.Category, spec.Name, domain.Day, spec.Description)
		ev.SetContent(s.renderer.Render(checkReport))
		if err := s.env.Locker.AddEvidence(ev); err != nil {
			return nil, fmt.Errorf("writing report %s: %w", ev.Path(), err)
		}
		wrote = true
	}

	if !opts.NoCommit {
		msg := fmt.Sprintf("Check run %s\n\n%d checks", report.ID, len(checks))
		if err := s.env.commit(report, msg, wrote); err != nil {
			return nil, fmt.Errorf("committing check reports: %w", err)
		}
	}
	s.env.finish(report)
	return report, nil
}

func (s *CheckService) runCheck(ctx context.Context, c Check, opts CheckOptions) ([]domain.TestResult, domain.CheckReport) {
	var results []domain.TestResult
	var read []string
	seen := map[string]bool{}
	title := c.Title()

	for _, t := range c.Tests() {
		tctx, span := s.env.span(ctx, domain.RunCheck, c.Name(), t.Name)
		run := s.env.newRun(c.Name())
		run.IgnoreTTL = opts.IgnoreTTL

		var r domain.Results
		start := s.env.Now()
		err := t.Run(tctx, run, &r)
		res := domain.TestResult{
			Component: c.Name(),
			Test:      t.Name,
			Status:    r.Status(),
			Findings:  r.Findings(),
			Evidence:  run.Read(),
			Duration:  s.env.Now().Sub(start).Seconds(),
		}
		if err != nil {
			res.Status = domain.StatusError
			res.Error = err.Error()
			run.Log.Error("check test errored", zap.String("test", t.Name), zap.Error(err))
		} else {
			run.Log.Info("check test finished", zap.String("test", t.Name), zap.String("status", string(res.Status)),
				zap.Int("failures", r.Count(domain.FindingFailure)), zap.Int("warnings", r.Count(domain.FindingWarning)))
		}
		if run.Title() != "" {
			title = run.Title()
		}
		for _, p := range run.Read() {
			if !seen[p] {
				seen[p] = true
				read = append(read, p)
			}
		}
		endSpan(span, res)
		results = append(results, res)
	}

	spec := c.Report()
	return results, domain.CheckReport{
		Title:       title,
		Component:   c.Name(),
		Description: spec.Description,
		GeneratedAt: s.env.Now().UTC(),
		Results:     results,
		Evidence:    read,
	}
}

// ReportPath returns the locker path of a check's report.
func ReportPath(c Check) string {
	spec := c.Report()
	return path.Join(string(domain.KindReport), spec.Category, spec.Name)
}
