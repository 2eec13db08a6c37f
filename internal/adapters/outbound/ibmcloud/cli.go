package ibmcloud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/command"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// CLIClusterLister lists clusters with the ibmcloud CLI instead of the
// containers API.
type CLIClusterLister struct {
	Runner domain.CommandRunner
	// Binary defaults to "ibmcloud".
	Binary string
}

func (l CLIClusterLister) binary() string {
	if l.Binary == "" {
		return "ibmcloud"
	}
	return l.Binary
}

// Clusters logs in with apiKey and returns the parsed output of
// `ibmcloud ks cluster ls --json`. The container-service plugin is
// installed on demand.
func (l CLIClusterLister) Clusters(ctx context.Context, apiKey string) ([]domain.JSONObject, error) {
	bin := l.binary()
	login := domain.Command{
		Args:    []string{bin, "login", "--apikey", apiKey, "-a", "https://cloud.ibm.com", "--no-region", "-q"},
		Secrets: []string{apiKey},
		Timeout: command.DefaultTimeout,
	}
	if _, _, err := l.Runner.Run(ctx, login); err != nil {
		return nil, fmt.Errorf("ibmcloud login: %w", err)
	}
	ls := domain.Command{
		Args:    []string{bin, "ks", "cluster", "ls", "--json"},
		Timeout: command.DefaultTimeout,
	}
	install := domain.Command{
		Args:    []string{bin, "plugin", "install", "container-service", "-f"},
		Timeout: command.DefaultTimeout,
	}
	stdout, _, err := command.RunWithPluginRetry(ctx, l.Runner, ls, install)
	if err != nil {
		return nil, err
	}
	clusters := []domain.JSONObject{}
	if err := json.Unmarshal([]byte(stdout), &clusters); err != nil {
		return nil, fmt.Errorf("parsing cluster list: %w", err)
	}
	return clusters, nil
}
