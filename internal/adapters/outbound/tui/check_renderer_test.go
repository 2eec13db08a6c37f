package tui_test

import (
	"strings"
	"testing"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/tui"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sampleResult() domain.TestResult {
	return domain.TestResult{
		Component: "permissions.org_permissions",
		Test:      "RepoPermissions",
		Title:     "Repository Permissions",
		Status:    domain.StatusFail,
		Findings: []domain.Finding{
			{Kind: domain.FindingSuccess, Section: "Teams", Item: map[string]any{"repo": "api", "teams": []string{"admins"}}},
			{Kind: domain.FindingFailure, Section: "Outside collaborators", Item: "guest"},
			{Kind: domain.FindingWarning, Section: "Forks", Item: "https://github.com/u/api"},
			{Kind: domain.FindingFailure, Section: "Outside collaborators", Item: "visitor"},
		},
	}
}

func TestRenderResultDetail_ContainsHeader(t *testing.T) {
	output := tui.RenderResultDetail(sampleResult())
	assert.Contains(t, output, "permissions.org_permissions.RepoPermissions")
	assert.Contains(t, output, "Repository Permissions")
}

func TestRenderResultDetail_GroupsSections(t *testing.T) {
	output := tui.RenderResultDetail(sampleResult())
	assert.Equal(t, 1, strings.Count(output, "Outside collaborators"))
	assert.Contains(t, output, "(2)")
	assert.Contains(t, output, "guest")
	assert.Contains(t, output, "visitor")
}

func TestRenderResultDetail_FailuresFirst(t *testing.T) {
	output := tui.RenderResultDetail(sampleResult())
	fail := strings.Index(output, "Outside collaborators")
	warn := strings.Index(output, "Forks")
	success := strings.Index(output, "Teams")
	assert.Less(t, fail, warn)
	assert.Less(t, warn, success)
}

func TestRenderResultDetail_StructuredItemsAsJSON(t *testing.T) {
	output := tui.RenderResultDetail(sampleResult())
	assert.Contains(t, output, `{"repo":"api","teams":["admins"]}`)
}

func TestRenderResultDetail_Error(t *testing.T) {
	output := tui.RenderResultDetail(domain.TestResult{Component: "c", Test: "t", Error: "boom"})
	assert.Contains(t, output, "error")
	assert.Contains(t, output, "boom")
}
