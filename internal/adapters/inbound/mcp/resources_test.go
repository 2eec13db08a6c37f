package mcp

import (
	"context"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/apptest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

func readRequest(uri string) mcplib.ReadResourceRequest {
	var req mcplib.ReadResourceRequest
	req.Params.URI = uri
	return req
}

func TestReportResource(t *testing.T) {
	lk := apptest.NewMemLocker(time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC))
	lk.Seed("reports/auditree/compliance_config.md", []byte("# Compliance Config\n"), time.Now(), 0)
	handler := handleReportResource(Services{Locker: lk})

	contents, err := handler(context.Background(), readRequest("arboretum://reports/auditree/compliance_config.md"))
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "text/markdown", tc.MIMEType)
	assert.Equal(t, "# Compliance Config\n", tc.Text)
}

func TestReportResource_BadURI(t *testing.T) {
	handler := handleReportResource(Services{Locker: apptest.NewMemLocker(time.Now())})

	_, err := handler(context.Background(), readRequest("arboretum://reports/compliance_config.md"))
	assert.Error(t, err)
}

func TestReportResource_RejectsParentReferences(t *testing.T) {
	handler := handleReportResource(Services{Locker: apptest.NewMemLocker(time.Now())})

	for _, uri := range []string{
		"arboretum://reports/../name",
		"arboretum://reports/../.git",
		"arboretum://reports/auditree/..",
	} {
		_, err := handler(context.Background(), readRequest(uri))
		assert.ErrorIs(t, err, domain.ErrInvalidEvidencePath, uri)
	}
}

func TestReportResource_Missing(t *testing.T) {
	handler := handleReportResource(Services{Locker: apptest.NewMemLocker(time.Now())})

	_, err := handler(context.Background(), readRequest("arboretum://reports/auditree/nothing.md"))
	assert.ErrorIs(t, err, domain.ErrEvidenceNotFound)
}

func TestComponentsResource(t *testing.T) {
	handler := handleComponentsResource(Services{Fetchers: []string{"cos.bucket_metadata"}})

	contents, err := handler(context.Background(), readRequest("arboretum://components"))
	require.NoError(t, err)
	tc := contents[0].(mcplib.TextResourceContents)
	assert.Contains(t, tc.Text, "cos.bucket_metadata")
}
