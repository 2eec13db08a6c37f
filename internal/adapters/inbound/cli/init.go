package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/config"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
)

func newInitCmd() *cobra.Command {
	var (
		repoURL string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Generate a starter " + config.DefaultFile,
		Long:  "Create an " + config.DefaultFile + " with the locker settings and the defaults of the auditree checks.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, config.DefaultFile)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultFile)
				}
			}

			content, err := starterConfig(repoURL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(dest, content, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.DefaultFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoURL, "locker-url", "https://github.com/my-org/evidence-locker", "Evidence locker repository URL")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing "+config.DefaultFile)

	return cmd
}

func starterConfig(repoURL string) ([]byte, error) {
	cfg := map[string]any{
		"locker": map[string]any{
			"repo_url":             repoURL,
			"default_branch":       fetchers.DefaultBranch,
			"large_file_threshold": check.LargeFileThresholdDefault,
		},
		"org": map[string]any{
			"auditree": map[string]any{
				"abandoned_evidence": map[string]any{
					"threshold":  check.AbandonedThresholdDefault,
					"exceptions": map[string]any{},
				},
				"empty_evidence": map[string]any{"exceptions": []any{}},
				"python_packages": map[string]any{
					"releases": fetchers.DefaultReleasePackages,
				},
				"repo_integrity": map[string]any{
					"branches": map[string]any{repoURL: []string{fetchers.DefaultBranch}},
					"repos":    []string{repoURL},
				},
			},
		},
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
