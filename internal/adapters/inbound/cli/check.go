package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	var (
		flags     runFlags
		ignoreTTL bool
	)

	cmd := &cobra.Command{
		Use:   "check [check...]",
		Short: "Run checks against the locker evidence",
		Long:  "Run the named checks (or families such as \"auditree\"), or every check with --all, write one markdown report per check to the locker and commit it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := flags.names(args, "check")
			if err != nil {
				return err
			}
			a, err := o.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			report, err := a.checkService().Check(cmd.Context(), names, application.CheckOptions{
				IgnoreTTL: ignoreTTL,
				NoCommit:  o.noCommit,
			})
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}
			return flags.finish(cmd, a, report)
		},
	}

	flags.register(cmd, "check")
	cmd.Flags().BoolVar(&ignoreTTL, "ignore-ttl", false, "Accept evidence past its TTL")

	return cmd
}
