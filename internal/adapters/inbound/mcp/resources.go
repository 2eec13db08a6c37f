package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const reportsURIPrefix = "arboretum://reports/"

// registerResources registers all arboretum MCP resources on the given server.
func registerResources(s *server.MCPServer, svc Services) {
	s.AddResource(
		mcplib.NewResource(
			"arboretum://components",
			"Components",
			mcplib.WithResourceDescription("Registered fetchers and checks"),
			mcplib.WithMIMEType("application/json"),
		),
		handleComponentsResource(svc),
	)

	s.AddResource(
		mcplib.NewResource(
			"arboretum://history",
			"Run History",
			mcplib.WithResourceDescription("Recent fetch and check runs of the locker"),
			mcplib.WithMIMEType("application/json"),
		),
		handleHistoryResource(svc),
	)

	s.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			reportsURIPrefix+"{category}/{name}",
			"Check Report",
			mcplib.WithTemplateDescription("Markdown report written by a check, e.g. auditree/locker_commit_integrity.md"),
			mcplib.WithTemplateMIMEType("text/markdown"),
		),
		handleReportResource(svc),
	)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func handleComponentsResource(svc Services) server.ResourceHandlerFunc {
	return func(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		return jsonContents(request.Params.URI, components(svc))
	}
}

func handleHistoryResource(svc Services) server.ResourceHandlerFunc {
	return func(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		runs, err := svc.History.Recent(svc.LockerPath, "", 0)
		if err != nil {
			return nil, err
		}
		return jsonContents(request.Params.URI, runs)
	}
}

func handleReportResource(svc Services) server.ResourceTemplateHandlerFunc {
	return func(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		rel := strings.TrimPrefix(request.Params.URI, reportsURIPrefix)
		if rel == request.Params.URI || strings.Count(rel, "/") != 1 {
			return nil, fmt.Errorf("report uri must look like %s<category>/<name>", reportsURIPrefix)
		}
		p, err := domain.CleanEvidencePath(string(domain.KindReport) + "/" + rel)
		if err != nil {
			return nil, err
		}
		ev, err := svc.Locker.GetEvidence(p)
		if err != nil {
			return nil, err
		}
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "text/markdown",
				Text:     string(ev.Content),
			},
		}, nil
	}
}
