package checks_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/apptest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/checks"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
)

var now = time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC)

// runTest runs one test of the named check against locker.
func runTest(t *testing.T, checkName, testName string, raw map[string]any, locker *apptest.MemLocker) (*domain.Results, *application.Run, error) {
	t.Helper()
	for _, c := range checks.All() {
		if c.Name() != checkName {
			continue
		}
		for _, tc := range c.Tests() {
			if tc.Name != testName {
				continue
			}
			run := application.NewRun(domain.NewConfig(raw, nil), locker, apptest.Creds{}, zaptest.NewLogger(t), now)
			var r domain.Results
			err := tc.Run(context.Background(), run, &r)
			return &r, run, err
		}
	}
	t.Fatalf("no test %s in check %s", testName, checkName)
	return nil, nil, nil
}

func items(r *domain.Results, kind domain.FindingKind) []any {
	var out []any
	for _, f := range r.ByKind(kind) {
		out = append(out, f.Item)
	}
	return out
}

func sections(r *domain.Results, kind domain.FindingKind) []string {
	var out []string
	for _, f := range r.ByKind(kind) {
		out = append(out, f.Section)
	}
	return out
}

func TestAll(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range checks.All() {
		assert.False(t, seen[c.Name()], "duplicate %s", c.Name())
		seen[c.Name()] = true
		assert.NotEmpty(t, c.Title())
		assert.NotEmpty(t, c.Tests(), c.Name())
		assert.True(t, strings.HasSuffix(c.Report().Name, ".md"), c.Name())
		assert.True(t, strings.HasPrefix(c.Name(), c.Report().Category+"."), c.Name())
	}
	assert.Len(t, seen, 13)
}

func TestAbandonedEvidence_ReportsChangesSinceYesterday(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.AbandonedEvidencePath, []byte(`{"abandoned":["raw/a.json"],"exceptions":{}}`), now.Add(-48*time.Hour), domain.Day)
	locker.Seed(fetchers.AbandonedEvidencePath,
		[]byte(`{"abandoned":["raw/a.json","raw/b.json"],"exceptions":{"raw/c.json":"retired"}}`), now.Add(-time.Hour), domain.Day)
	lastB := now.Add(-40 * 24 * time.Hour)
	locker.SeedMetadata("raw/b.json", domain.EvidenceMetadata{LastUpdate: lastB})

	r, run, err := runTest(t, "auditree.abandoned_evidence", "AbandonedEvidence", nil, locker)
	require.NoError(t, err)

	assert.Equal(t, "Latest Abandoned Evidence", run.Title())
	assert.Equal(t, []any{check.AbandonedItem{
		Path:       "raw/b.json",
		LastUpdate: domain.EvidenceMetadata{LastUpdate: lastB}.FormattedLastUpdate(),
	}}, items(r, domain.FindingFailure))
	assert.Equal(t, []any{check.AbandonedItem{Path: "raw/c.json", LastUpdate: "UNAVAILABLE", ExceptionReason: "retired"}},
		items(r, domain.FindingWarning))
}

func TestAbandonedEvidence_NoPreviousListing(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.AbandonedEvidencePath, []byte(`{"abandoned":["raw/a.json"],"exceptions":{}}`), now.Add(-time.Hour), domain.Day)

	r, _, err := runTest(t, "auditree.abandoned_evidence", "AbandonedEvidence", nil, locker)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count(domain.FindingFailure))
}

func TestAbandonedEvidence_ThresholdWithoutListing(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Abandoned = []string{"raw/a.json", "raw/b.json"}
	raw := map[string]any{"org": map[string]any{"auditree": map[string]any{"abandoned_evidence": map[string]any{
		"exceptions": map[string]any{"raw/b.json": "kept"},
	}}}}

	r, run, err := runTest(t, "auditree.abandoned_evidence", "AbandonedEvidence", raw, locker)
	require.NoError(t, err)

	assert.Empty(t, run.Title())
	assert.Equal(t, 30*domain.Day, locker.Threshold)
	assert.Equal(t, []any{check.AbandonedItem{Path: "raw/a.json", LastUpdate: "UNAVAILABLE"}}, items(r, domain.FindingFailure))
	assert.Equal(t, []any{check.AbandonedItem{Path: "raw/b.json", LastUpdate: "UNAVAILABLE", ExceptionReason: "kept"}},
		items(r, domain.FindingWarning))
}

func TestAbandonedEvidence_IgnoreHistory(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.AbandonedEvidencePath, []byte(`{"abandoned":["raw/a.json"],"exceptions":{}}`), now.Add(-time.Hour), domain.Day)
	raw := map[string]any{"org": map[string]any{"auditree": map[string]any{"abandoned_evidence": map[string]any{
		"ignore_history": true,
		"threshold":      3600,
	}}}}

	r, _, err := runTest(t, "auditree.abandoned_evidence", "AbandonedEvidence", raw, locker)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, locker.Threshold)
	assert.Zero(t, r.Count(domain.FindingFailure))
}

func TestEmptyEvidence(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Empty = []string{"raw/x.json", "raw/y.json"}
	raw := map[string]any{"org": map[string]any{"auditree": map[string]any{"empty_evidence": map[string]any{
		"exceptions": []any{"raw/y.json"},
	}}}}

	r, _, err := runTest(t, "auditree.empty_evidence", "EmptyEvidence", raw, locker)
	require.NoError(t, err)

	assert.Equal(t, []any{"`raw/x.json`"}, items(r, domain.FindingFailure))
	assert.Equal(t, []any{"`raw/y.json`"}, items(r, domain.FindingWarning))
}

func TestLargeFiles(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Large = map[string]int64{
		"raw/big.json":    60 * check.MB,
		"raw/almost.json": 45 * check.MB,
		"raw/small.json":  check.MB,
	}

	r, _, err := runTest(t, "auditree.large_files", "LargeFiles", nil, locker)
	require.NoError(t, err)

	assert.Equal(t, int64(40*check.MB), locker.LargeMin)
	assert.Equal(t, []any{"`raw/big.json` - 60.0 MB"}, items(r, domain.FindingFailure))
	assert.Equal(t, []any{"`raw/almost.json` - 45.0 MB"}, items(r, domain.FindingWarning))
}

func TestPythonPackages_Deltas(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.PythonPackagesPath, []byte(`{"a":"1","b":"1"}`), now.Add(-48*time.Hour), domain.Day)
	locker.Seed(fetchers.PythonPackagesPath, []byte(`{"a":"2","c":"1"}`), now.Add(-time.Hour), domain.Day)

	r, _, err := runTest(t, "auditree.python_packages", "PythonPackageDeltas", nil, locker)
	require.NoError(t, err)

	assert.Equal(t, []string{"Package Version Changes", "New Packages", "Removed Packages"}, sections(r, domain.FindingWarning))
	assert.Equal(t, []any{"a previous version 1, current version 2", "c version 1", "b version 1"}, items(r, domain.FindingWarning))
}

func TestPythonPackages_NoHistory(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.PythonPackagesPath, []byte(`{"a":"1"}`), now.Add(-time.Hour), domain.Day)

	r, _, err := runTest(t, "auditree.python_packages", "PythonPackageDeltas", nil, locker)
	require.NoError(t, err)

	assert.Equal(t, []string{"Python Package Deltas"}, sections(r, domain.FindingWarning))
}

func TestPythonPackages_LatestVersions(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.PythonPackagesPath, []byte(`{"auditree-framework":"1.0.0"}`), now.Add(-time.Hour), domain.Day)
	feed := `<rss><channel><item><title>1.1.0</title></item><item><title>1.0.0</title></item></channel></rss>`
	locker.Seed(fetchers.RawPath("auditree", "auditree_framework_releases.xml"), []byte(feed), now.Add(-time.Hour), domain.Day)
	locker.Seed(fetchers.RawPath("auditree", "auditree_harvest_releases.xml"), []byte(feed), now.Add(-time.Hour), domain.Day)
	raw := map[string]any{"org": map[string]any{"auditree": map[string]any{"python_packages": map[string]any{
		"releases": []any{"auditree-framework", "auditree-harvest"},
	}}}}

	r, _, err := runTest(t, "auditree.python_packages", "LatestVersions", raw, locker)
	require.NoError(t, err)

	assert.Equal(t, []any{
		"auditree-framework latest version 1.1.0, version used 1.0.0",
		"auditree-harvest latest version 1.1.0, version used None",
	}, items(r, domain.FindingWarning))
}

func TestPythonPackages_StaleEvidenceErrors(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.PythonPackagesPath, []byte(`{"a":"1"}`), now.Add(-48*time.Hour), domain.Day)

	_, _, err := runTest(t, "auditree.python_packages", "PythonPackageDeltas", nil, locker)

	assert.ErrorIs(t, err, domain.ErrStaleEvidence)
}

func TestComplianceConfig(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed(fetchers.ComplianceConfigPath, []byte(`{"org":{"name":"acme","retries":3}}`), now.Add(-time.Hour), 2*domain.Hour)

	same := map[string]any{"org": map[string]any{"name": "acme", "retries": 3}}
	r, _, err := runTest(t, "auditree.compliance_config", "ComplianceConfiguration", same, locker)
	require.NoError(t, err)
	assert.Empty(t, r.Findings())

	changed := map[string]any{"org": map[string]any{"name": "other", "retries": 3}}
	r, _, err = runTest(t, "auditree.compliance_config", "ComplianceConfiguration", changed, locker)
	require.NoError(t, err)
	assert.Equal(t, []string{"Differences found"}, sections(r, domain.FindingFailure))
}
