package fetchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// Locker paths of the auditree evidence the checks read back.
const (
	AbandonedEvidencePath = "raw/auditree/abandoned_evidence.json"
	ComplianceConfigPath  = "raw/auditree/compliance_config.json"
	PythonPackagesPath    = "raw/auditree/python_packages.json"
)

// DefaultReleasePackages are the PyPI packages whose release feeds are
// fetched when org.auditree.python_packages.releases is not set.
var DefaultReleasePackages = []string{"auditree-arboretum", "auditree-framework", "auditree-harvest"}

// DefaultPythonInterpreter is the interpreter whose environment is listed
// when org.auditree.python_packages.interpreter is not set.
const DefaultPythonInterpreter = "python3"

const pipListTimeout = 60 * time.Second

// AbandonedEvidence stores the locker's abandoned evidence, split by the
// configured exceptions.
type AbandonedEvidence struct{}

func (*AbandonedEvidence) Name() string        { return "auditree.abandoned_evidence" }
func (*AbandonedEvidence) Description() string { return "Abandoned evidence" }

func (f *AbandonedEvidence) Fetch(_ context.Context, run *application.Run) error {
	seconds := run.Config.Int64("org.auditree.abandoned_evidence.threshold", check.AbandonedThresholdDefault)
	exceptions := run.Config.StringMapString("org.auditree.abandoned_evidence.exceptions")
	ev := domain.NewRawEvidence("auditree", "abandoned_evidence.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		paths, err := run.Locker.AbandonedEvidences(time.Duration(seconds) * time.Second)
		if err != nil {
			return err
		}
		return ev.SetJSON(check.SplitAbandoned(paths, exceptions))
	})
}

// ComplianceConfig snapshots the running configuration on every run so the
// compliance_config check can detect drift.
type ComplianceConfig struct{}

func (*ComplianceConfig) Name() string        { return "auditree.compliance_config" }
func (*ComplianceConfig) Description() string { return "Compliance Configuration" }

func (f *ComplianceConfig) Fetch(_ context.Context, run *application.Run) error {
	ev := domain.NewRawEvidence("auditree", "compliance_config.json", 2*domain.Hour, f.Description())
	if err := ev.SetJSON(run.Config.Raw()); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	return run.Put(ev)
}

// PythonPackages records the package set of the execution environment and
// the PyPI release feeds of the tracked packages. The environment is listed
// with pip unless org.auditree.python_packages.packages overrides it.
type PythonPackages struct {
	pypi   domain.PyPIAPI
	runner domain.CommandRunner
}

func (*PythonPackages) Name() string        { return "auditree.python_packages" }
func (*PythonPackages) Description() string { return "Python Package List" }

func (f *PythonPackages) Fetch(ctx context.Context, run *application.Run) error {
	ev := domain.NewRawEvidence("auditree", "python_packages.json", domain.Day, f.Description())
	errs := []error{run.Store(ev, func(ev *domain.Evidence) error {
		packages, err := f.installed(ctx, run)
		if err != nil {
			return err
		}
		return ev.SetJSON(packages)
	})}

	for _, pkg := range ReleasePackages(run.Config) {
		desc := fmt.Sprintf("%s PyPI releases", pkg)
		ev := domain.NewRawEvidence("auditree", evidence.PackageReleasesName(pkg), domain.Day, desc)
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			if f.pypi == nil {
				return notConfigured("pypi")
			}
			feed, err := f.pypi.Releases(ctx, pkg)
			if err != nil {
				return err
			}
			run.Log.Debug("fetched release feed", zap.String("package", pkg), zap.Int("bytes", len(feed)))
			ev.SetContent(feed)
			return nil
		}))
	}
	return errors.Join(errs...)
}

// installed maps every distribution of the environment to its version.
func (f *PythonPackages) installed(ctx context.Context, run *application.Run) (map[string]string, error) {
	const override = "org.auditree.python_packages.packages"
	if run.Config.Has(override) {
		packages := run.Config.StringMapString(override)
		if packages == nil {
			packages = map[string]string{}
		}
		return packages, nil
	}
	if f.runner == nil {
		return nil, notConfigured("command runner")
	}
	interpreter := run.Config.String("org.auditree.python_packages.interpreter", DefaultPythonInterpreter)
	stdout, _, err := f.runner.Run(ctx, domain.Command{
		Args:    []string{interpreter, "-m", "pip", "list", "--format=json", "--disable-pip-version-check"},
		Timeout: pipListTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("listing python packages: %w", err)
	}
	var dists []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(stdout), &dists); err != nil {
		return nil, fmt.Errorf("parsing pip list output: %w", err)
	}
	packages := make(map[string]string, len(dists))
	for _, d := range dists {
		packages[d.Name] = d.Version
	}
	run.Log.Debug("listed python packages", zap.String("interpreter", interpreter), zap.Int("count", len(packages)))
	return packages, nil
}

// ReleasePackages returns the packages whose releases are tracked.
func ReleasePackages(cfg domain.Config) []string {
	return cfg.StringSlice("org.auditree.python_packages.releases", DefaultReleasePackages)
}
