package tui_test

import (
	"testing"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/tui"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sampleReport() *domain.RunReport {
	return &domain.RunReport{
		ID:      "3f2c9a10-7d4e-4a55-9b1e-0c6f2b8a9d11",
		Kind:    domain.RunCheck,
		Commit:  "0123456789abcdef0123456789abcdef01234567",
		Started: time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC),
		Results: []domain.TestResult{
			{Component: "auditree.large_files", Test: "LargeFiles", Status: domain.StatusPass, Duration: 0.12},
			{
				Component: "auditree.empty_evidence", Test: "EmptyEvidence", Title: "Empty Evidence",
				Status: domain.StatusFail,
				Findings: []domain.Finding{
					{Kind: domain.FindingFailure, Section: "Empty Evidence", Item: "`raw/foo/bar.json`"},
					{Kind: domain.FindingWarning, Section: "Expected Empty Evidence", Item: "`raw/foo/baz.json`"},
				},
			},
			{Component: "auditree.python_packages", Test: "LatestVersions", Status: domain.StatusError, Error: "evidence not found\nmore"},
			{Component: "cos.bucket_encryption", Test: "BucketCustomerKeyEncryption", Status: domain.StatusSkip},
		},
	}
}

func TestRenderRunReport_ContainsTotals(t *testing.T) {
	output := tui.RenderRunReport(sampleReport())
	assert.Contains(t, output, "1 pass")
	assert.Contains(t, output, "1 fail")
	assert.Contains(t, output, "1 error")
	assert.Contains(t, output, "1 skip")
}

func TestRenderRunReport_ContainsResults(t *testing.T) {
	output := tui.RenderRunReport(sampleReport())
	assert.Contains(t, output, "auditree.large_files.LargeFiles")
	assert.Contains(t, output, "cos.bucket_encryption.BucketCustomerKeyEncryption")
	assert.Contains(t, output, "0.12s")
}

func TestRenderRunReport_ContainsFindingsAndErrors(t *testing.T) {
	output := tui.RenderRunReport(sampleReport())
	assert.Contains(t, output, "Empty Evidence")
	assert.Contains(t, output, "`raw/foo/bar.json`")
	assert.Contains(t, output, "Expected Empty Evidence")
	assert.Contains(t, output, "evidence not found")
	assert.NotContains(t, output, "more")
}

func TestRenderRunReport_ShortCommitAndID(t *testing.T) {
	output := tui.RenderRunReport(sampleReport())
	assert.Contains(t, output, "0123456")
	assert.NotContains(t, output, "0123456789abcdef")
	assert.Contains(t, output, "3f2c9a10")
}

func TestRenderRunReport_Empty(t *testing.T) {
	output := tui.RenderRunReport(&domain.RunReport{Kind: domain.RunFetch})
	assert.Contains(t, output, "Nothing ran.")
	assert.Contains(t, output, "no results")
}

func TestRenderHistory_Empty(t *testing.T) {
	assert.Contains(t, tui.RenderHistory(nil), "No run history found.")
}

func TestRenderHistory_Trend(t *testing.T) {
	at := time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC)
	reports := []domain.RunReport{
		{Kind: domain.RunCheck, Started: at, Results: []domain.TestResult{{Status: domain.StatusPass}}},
		{Kind: domain.RunCheck, Started: at.Add(time.Hour), Commit: "abcdef1234", Results: []domain.TestResult{{Status: domain.StatusFail}, {Status: domain.StatusError}}},
		{Kind: domain.RunCheck, Started: at.Add(2 * time.Hour), Results: []domain.TestResult{{Status: domain.StatusFail}}},
	}
	output := tui.RenderHistory(reports)
	assert.Contains(t, output, "Run History")
	assert.Contains(t, output, "2020-08-20 10:00")
	assert.Contains(t, output, "abcdef1")
	assert.Contains(t, output, "↑2 failing")
	assert.Contains(t, output, "↓1 failing")
}

func TestRenderComponents(t *testing.T) {
	output := tui.RenderComponents([]string{"github.repo_metadata"}, []string{"auditree.large_files", "cos.expired_keys"})
	assert.Contains(t, output, "Fetchers")
	assert.Contains(t, output, "(1)")
	assert.Contains(t, output, "(2)")
	assert.Contains(t, output, "cos.expired_keys")
}
