package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/tui"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// runFlags are shared by fetch and check.
type runFlags struct {
	all         bool
	jsonOutput  bool
	ciMode      bool
	metricsFile string
}

func (f *runFlags) register(cmd *cobra.Command, kind string) {
	cmd.Flags().BoolVar(&f.all, "all", false, "Run every registered "+kind)
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output the run report as JSON")
	cmd.Flags().BoolVar(&f.ciMode, "ci", false, "CI mode: exit 1 if any "+kind+" failed or errored")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
}

func (f *runFlags) names(args []string, kind string) ([]string, error) {
	if !f.all && len(args) == 0 {
		return nil, fmt.Errorf("specify a %s name or use --all to run every %s", kind, kind)
	}
	if f.all {
		return nil, nil
	}
	return args, nil
}

// finish renders report and applies the metrics and CI flags.
func (f *runFlags) finish(cmd *cobra.Command, a *app, report *domain.RunReport) error {
	if f.jsonOutput {
		if err := renderJSON(cmd, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderRunReport(report))
	}

	if f.metricsFile != "" {
		if err := a.recorder.WriteTextfile(f.metricsFile); err != nil {
			return err
		}
	}

	if f.ciMode && report.Failed() {
		return errRunFailed
	}
	return nil
}

var errRunFailed = errors.New("run has failed or errored results")

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFetchCmd(o *rootOptions) *cobra.Command {
	var (
		flags runFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [fetcher...]",
		Short: "Fetch evidence into the locker",
		Long:  "Run the named fetchers (or families such as \"github\"), or every fetcher with --all, and commit the evidence to the locker. Evidence still within its TTL is left alone unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := flags.names(args, "fetcher")
			if err != nil {
				return err
			}
			a, err := o.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			report, err := a.fetchService().Fetch(cmd.Context(), names, application.FetchOptions{
				Force:    force,
				NoCommit: o.noCommit,
			})
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			return flags.finish(cmd, a, report)
		},
	}

	flags.register(cmd, "fetcher")
	cmd.Flags().BoolVar(&force, "force", false, "Refetch evidence that is still fresh")

	return cmd
}
