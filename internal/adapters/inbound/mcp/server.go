package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// Fetcher runs fetchers; *application.FetchService implements it.
type Fetcher interface {
	Fetch(ctx context.Context, names []string, opts application.FetchOptions) (*domain.RunReport, error)
}

// Checker runs checks; *application.CheckService implements it.
type Checker interface {
	Check(ctx context.Context, names []string, opts application.CheckOptions) (*domain.RunReport, error)
}

// Services is what the MCP tools and resources are served from.
type Services struct {
	Fetch      Fetcher
	Check      Checker
	History    *application.HistoryService
	Locker     domain.EvidenceLocker
	LockerPath string
	Fetchers   []string
	Checks     []string
}

// NewArboretumMCPServer creates a new MCP server with every arboretum tool
// and resource registered.
func NewArboretumMCPServer(svc Services, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"arboretum",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, svc)
	registerResources(s, svc)

	return s
}
