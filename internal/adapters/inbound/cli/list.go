package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/history"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/tui"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered fetchers and checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetcherNames, checkNames := componentNames()
			if jsonOutput {
				return renderJSON(cmd, map[string][]string{"fetchers": fetcherNames, "checks": checkNames})
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderComponents(fetcherNames, checkNames))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		kind       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetch and check runs",
		Long:  "Show the runs recorded next to the evidence locker, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := runKind(kind)
			if err != nil {
				return err
			}
			runs, err := application.NewHistoryService(history.New()).Recent(o.lockerPath, k, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return renderJSON(cmd, runs)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show fetch or check runs")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show (0 for all)")

	return cmd
}

func runKind(kind string) (domain.RunKind, error) {
	switch k := domain.RunKind(kind); k {
	case "", domain.RunFetch, domain.RunCheck:
		return k, nil
	default:
		return "", fmt.Errorf("unknown run kind %q (valid: %s, %s)", kind, domain.RunFetch, domain.RunCheck)
	}
}
