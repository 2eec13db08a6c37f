package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/inbound/mcp"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/history"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
)

func newMCPCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the arboretum MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(o))
	return cmd
}

func newMCPServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the arboretum MCP server (stdio)",
		Long:  "Start the arboretum MCP server using stdio transport. Assistants can run fetchers and checks, read locker evidence and browse check reports and run history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			fetcherNames, checkNames := componentNames()
			s := mcpadapter.NewArboretumMCPServer(mcpadapter.Services{
				Fetch:      a.fetchService(),
				Check:      a.checkService(),
				History:    application.NewHistoryService(history.New()),
				Locker:     a.locker,
				LockerPath: o.lockerPath,
				Fetchers:   fetcherNames,
				Checks:     checkNames,
			}, version)
			return server.ServeStdio(s)
		},
	}
}
