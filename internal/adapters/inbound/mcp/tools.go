package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// registerTools registers all arboretum MCP tools on the given server.
func registerTools(s *server.MCPServer, svc Services) {
	s.AddTool(
		mcplib.NewTool("arboretum_fetch",
			mcplib.WithDescription("Run fetchers and commit their evidence to the locker. Returns the run report as JSON."),
			mcplib.WithString("names", mcplib.Description("Comma-separated fetcher names or families (default: every fetcher)")),
			mcplib.WithBoolean("force", mcplib.Description("Refetch evidence that is still fresh")),
		),
		handleFetch(svc),
	)

	s.AddTool(
		mcplib.NewTool("arboretum_check",
			mcplib.WithDescription("Run checks against the locker evidence and write their reports. Returns the run report as JSON."),
			mcplib.WithString("names", mcplib.Description("Comma-separated check names or families (default: every check)")),
			mcplib.WithBoolean("ignore_ttl", mcplib.Description("Accept evidence past its TTL")),
		),
		handleCheck(svc),
	)

	s.AddTool(
		mcplib.NewTool("arboretum_list",
			mcplib.WithDescription("List the registered fetchers and checks"),
		),
		handleList(svc),
	)

	s.AddTool(
		mcplib.NewTool("arboretum_get_evidence",
			mcplib.WithDescription("Return the current content of one locker file, e.g. raw/auditree/python_packages.json"),
			mcplib.WithString("path",
				mcplib.Required(),
				mcplib.Description("Locker path of the evidence"),
			),
		),
		handleGetEvidence(svc),
	)

	s.AddTool(
		mcplib.NewTool("arboretum_history",
			mcplib.WithDescription("Return recent fetch and check runs, oldest first"),
			mcplib.WithString("kind", mcplib.Description("fetch or check (default: both)")),
			mcplib.WithNumber("limit", mcplib.Description("Number of runs (default 20, 0 for all)")),
		),
		handleHistory(svc),
	)
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func handleFetch(svc Services) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		report, err := svc.Fetch.Fetch(ctx, splitNames(request.GetString("names", "")), application.FetchOptions{
			Force: request.GetBool("force", false),
		})
		if err != nil {
			return errorResult(fmt.Sprintf("fetch failed: %v", err)), nil
		}
		return jsonResult(report)
	}
}

func handleCheck(svc Services) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		report, err := svc.Check.Check(ctx, splitNames(request.GetString("names", "")), application.CheckOptions{
			IgnoreTTL: request.GetBool("ignore_ttl", false),
		})
		if err != nil {
			return errorResult(fmt.Sprintf("check failed: %v", err)), nil
		}
		return jsonResult(report)
	}
}

func components(svc Services) map[string][]string {
	return map[string][]string{"fetchers": svc.Fetchers, "checks": svc.Checks}
}

func handleList(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(components(svc))
	}
}

func handleGetEvidence(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		p, err := request.RequireString("path")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if p, err = domain.CleanEvidencePath(p); err != nil {
			return errorResult(err.Error()), nil
		}
		ev, err := svc.Locker.GetEvidence(p)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return textResult(string(ev.Content)), nil
	}
}

func handleHistory(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		kind := domain.RunKind(request.GetString("kind", ""))
		runs, err := svc.History.Recent(svc.LockerPath, kind, request.GetInt("limit", 20))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(runs)
	}
}

// jsonResult marshals v as indented JSON text content.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// textResult returns a plain text content result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

// errorResult returns an error content result.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
