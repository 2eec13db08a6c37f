package check_test

import (
	"testing"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/stretchr/testify/assert"
)

func TestPackageDeltas(t *testing.T) {
	var r domain.Results
	check.PackageDeltas(&r,
		map[string]string{"cobra": "1.10.2", "zap": "1.27.0", "new-pkg": "0.1.0"},
		map[string]string{"cobra": "1.9.0", "zap": "1.27.0", "gone": "2.0"},
	)

	assert.Equal(t, []domain.Finding{
		{Kind: domain.FindingWarning, Section: "Package Version Changes", Item: "cobra previous version 1.9.0, current version 1.10.2"},
		{Kind: domain.FindingWarning, Section: "New Packages", Item: "new-pkg version 0.1.0"},
		{Kind: domain.FindingWarning, Section: "Removed Packages", Item: "gone version 2.0"},
	}, r.Findings())
	assert.Equal(t, domain.StatusWarn, r.Status())
}

func TestPackageDeltas_Unchanged(t *testing.T) {
	var r domain.Results
	check.PackageDeltas(&r, map[string]string{"a": "1"}, map[string]string{"a": "1"})
	assert.Empty(t, r.Findings())
	assert.Equal(t, domain.StatusPass, r.Status())
}

func TestNoPackageHistory(t *testing.T) {
	var r domain.Results
	check.NoPackageHistory(&r, time.Date(2020, 8, 19, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, []domain.Finding{{
		Kind:    domain.FindingWarning,
		Section: "Python Package Deltas",
		Item:    "No evidence found on or prior to Aug 19, 2020",
	}}, r.Findings())
}

func TestLatestVersion(t *testing.T) {
	installed := map[string]string{"auditree-framework": "1.0.1", "auditree-arboretum": "1.0.2"}

	var r domain.Results
	check.LatestVersion(&r, "auditree-arboretum", "1.0.2", installed)
	assert.Empty(t, r.Findings())

	check.LatestVersion(&r, "auditree-framework", "1.0.2", installed)
	check.LatestVersion(&r, "auditree-harvest", "1.0.0", installed)
	warnings := r.ByKind(domain.FindingWarning)
	assert.Len(t, warnings, 2)
	assert.Equal(t, "auditree-framework latest version 1.0.2, version used 1.0.1", warnings[0].Item)
	assert.Equal(t, "auditree-harvest latest version 1.0.0, version used None", warnings[1].Item)
	assert.Equal(t, "Latest Version Violation", warnings[0].Section)
}
