package checks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/timefmt"
)

// AbandonedEvidence reports evidence that stopped being refreshed. With the
// abandoned evidence listing in the locker only what changed since the day
// before is reported; otherwise the locker is queried against the
// threshold directly.
type AbandonedEvidence struct{ about }

func (c *AbandonedEvidence) Tests() []application.Test {
	return []application.Test{{Name: "AbandonedEvidence", Run: c.abandoned}}
}

func (c *AbandonedEvidence) abandoned(_ context.Context, run *application.Run, r *domain.Results) error {
	if run.Config.Bool("org.auditree.abandoned_evidence.ignore_history", false) {
		return c.byThreshold(run, r)
	}
	current, err := run.Evidence(fetchers.AbandonedEvidencePath)
	if errors.Is(err, domain.ErrEvidenceNotFound) {
		return c.byThreshold(run, r)
	}
	if err != nil {
		return err
	}
	run.SetTitle("Latest Abandoned Evidence")
	cur, err := evidence.NewAbandonedEvidence(current).Doc()
	if err != nil {
		return err
	}
	var prev evidence.AbandonedDoc
	previous, err := historical(run, fetchers.AbandonedEvidencePath, comparisonDate(run))
	if err != nil {
		return err
	}
	if previous != nil {
		if prev, err = evidence.NewAbandonedEvidence(previous).Doc(); err != nil {
			return err
		}
	}
	check.AbandonedSince(r, cur, prev, run.FormattedLastUpdate)
	return nil
}

func (c *AbandonedEvidence) byThreshold(run *application.Run, r *domain.Results) error {
	seconds := run.Config.Int64("org.auditree.abandoned_evidence.threshold", check.AbandonedThresholdDefault)
	run.Log.Debug("checking abandoned evidence by threshold", zap.String("threshold", timefmt.ParseSeconds(seconds)))
	paths, err := run.Locker.AbandonedEvidences(time.Duration(seconds) * time.Second)
	if err != nil {
		return err
	}
	exceptions := run.Config.StringMapString("org.auditree.abandoned_evidence.exceptions")
	check.AbandonedByThreshold(r, paths, exceptions, run.FormattedLastUpdate)
	return nil
}

// EmptyEvidence reports evidence files without content.
type EmptyEvidence struct{ about }

func (c *EmptyEvidence) Tests() []application.Test {
	return []application.Test{{Name: "EmptyEvidence", Run: c.empty}}
}

func (c *EmptyEvidence) empty(_ context.Context, run *application.Run, r *domain.Results) error {
	paths, err := run.Locker.EmptyEvidences()
	if err != nil {
		return err
	}
	check.EmptyEvidence(r, paths, run.Config.StringSlice("org.auditree.empty_evidence.exceptions", nil))
	return nil
}

// LargeFiles reports locker files above, or close to, the large file
// threshold.
type LargeFiles struct{ about }

func (c *LargeFiles) Tests() []application.Test {
	return []application.Test{{Name: "LargeFiles", Run: c.large}}
}

func (c *LargeFiles) large(_ context.Context, run *application.Run, r *domain.Results) error {
	threshold := run.Config.Int64("locker.large_file_threshold", check.LargeFileThresholdDefault)
	files, err := run.Locker.LargeFiles(int64(check.LargeFileWarnSize(threshold)))
	if err != nil {
		return err
	}
	check.LargeFiles(r, files, threshold)
	return nil
}

// PythonPackages compares the execution environment with the day before
// and with the latest releases of the tracked packages.
type PythonPackages struct{ about }

func (c *PythonPackages) Tests() []application.Test {
	return []application.Test{
		{Name: "PythonPackageDeltas", Run: c.deltas},
		{Name: "LatestVersions", Run: c.latest},
	}
}

func packageSet(ev *domain.Evidence) (map[string]string, error) {
	pkgs := map[string]string{}
	if err := json.Unmarshal(ev.Content, &pkgs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ev.Path(), err)
	}
	return pkgs, nil
}

func (c *PythonPackages) deltas(_ context.Context, run *application.Run, r *domain.Results) error {
	current, err := run.Evidence(fetchers.PythonPackagesPath)
	if err != nil {
		return err
	}
	at := comparisonDate(run)
	previous, err := historical(run, fetchers.PythonPackagesPath, at)
	if err != nil {
		return err
	}
	if previous == nil {
		check.NoPackageHistory(r, at)
		return nil
	}
	today, err := packageSet(current)
	if err != nil {
		return err
	}
	yesterday, err := packageSet(previous)
	if err != nil {
		return err
	}
	check.PackageDeltas(r, today, yesterday)
	return nil
}

func (c *PythonPackages) latest(_ context.Context, run *application.Run, r *domain.Results) error {
	current, err := run.Evidence(fetchers.PythonPackagesPath)
	if err != nil {
		return err
	}
	installed, err := packageSet(current)
	if err != nil {
		return err
	}
	for _, pkg := range fetchers.ReleasePackages(run.Config) {
		feed, err := run.Evidence(fetchers.RawPath("auditree", evidence.PackageReleasesName(pkg)))
		if err != nil {
			return err
		}
		latest, err := evidence.NewPackageRelease(feed).LatestRelease()
		if err != nil {
			return err
		}
		check.LatestVersion(r, pkg, latest, installed)
	}
	return nil
}

// ComplianceConfig compares the configuration captured by the fetch run
// with the configuration the checks run with.
type ComplianceConfig struct{ about }

func (c *ComplianceConfig) Tests() []application.Test {
	return []application.Test{{Name: "ComplianceConfiguration", Run: c.drift}}
}

func (c *ComplianceConfig) drift(_ context.Context, run *application.Run, r *domain.Results) error {
	captured, err := run.Evidence(fetchers.ComplianceConfigPath)
	if err != nil {
		return err
	}
	diff, err := check.ConfigDrift(r, captured.Content, run.Config.Raw())
	if err != nil {
		return err
	}
	if diff != "" {
		run.Log.Debug("configuration drifted since fetch", zap.String("diff", diff))
	}
	return nil
}
