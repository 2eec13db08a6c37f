package fetchers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// KubeClusterListPath is the bill of materials the cluster resource
// fetcher reads.
const KubeClusterListPath = "raw/kubernetes/cluster_list.json"

// KubeClusterList stores the configured bill of materials: the clusters,
// their accounts and kubeconfig files.
type KubeClusterList struct{}

func (*KubeClusterList) Name() string { return "kubernetes.cluster_list" }
func (*KubeClusterList) Description() string {
	return "Kubernetes cluster list (bill of materials)"
}

func (f *KubeClusterList) Fetch(_ context.Context, run *application.Run) error {
	ev := domain.NewRawEvidence("kubernetes", "cluster_list.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		bom := run.Config.Get("org.kubernetes.cluster_list.bom", []any{})
		return ev.SetJSON(bom)
	})
}

// bomEntry is one cluster of the bill of materials.
type bomEntry struct {
	Account    string `json:"account"`
	Name       string `json:"name"`
	Kubeconfig string `json:"kubeconfig"`
}

// KubeClusterResource stores the resources of the clusters of each
// configured cluster list type: "kubernetes" reads the bill of materials,
// "ibm_cloud" the IBM Cloud inventory.
type KubeClusterResource struct {
	clusterWalker
}

func (*KubeClusterResource) Name() string        { return "kubernetes.cluster_resource" }
func (*KubeClusterResource) Description() string { return "Kubernetes cluster resources" }

func (f *KubeClusterResource) Fetch(ctx context.Context, run *application.Run) error {
	ev := domain.NewRawEvidence("kubernetes", "cluster_resource.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		out := newObject()
		for _, listType := range run.Config.StringSlice("org.kubernetes.cluster_resource.cluster_list_types", nil) {
			switch listType {
			case "kubernetes":
				res, err := f.bomResources(ctx, run)
				if err != nil {
					return fmt.Errorf("cluster list %q: %w", listType, err)
				}
				out.Set(listType, res)
			case "ibm_cloud":
				types := run.Config.StringSlice("org.ibm_cloud.cluster_resource.target_resource_types", DefaultResourceTypes)
				res, err := f.resources(ctx, run, types, true)
				if err != nil {
					return fmt.Errorf("cluster list %q: %w", listType, err)
				}
				out.Set(listType, res)
			default:
				run.Log.Error("cluster list type is not supported", zap.String("type", listType))
			}
		}
		return ev.SetJSON(out)
	})
}

// bomResources lists the target resource types on every cluster of the
// bill of materials and groups the items by account.
func (f *KubeClusterResource) bomResources(ctx context.Context, run *application.Run) (*object, error) {
	if f.kube == nil {
		return nil, notConfigured("kubernetes")
	}
	types := run.Config.StringSlice("org.kubernetes.cluster_resource.target_resource_types", DefaultResourceTypes)
	ev, err := run.Evidence(KubeClusterListPath)
	if err != nil {
		return nil, err
	}
	var bom []bomEntry
	if err := json.Unmarshal(ev.Content, &bom); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KubeClusterListPath, err)
	}
	out := newObject()
	for _, c := range bom {
		res, err := f.kube.Resources(ctx, domain.KubeTarget{Kubeconfig: c.Kubeconfig}, types)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", c.Name, err)
		}
		items := []any{}
		for _, t := range types {
			items = append(items, res[t]...)
		}
		var clusters []any
		if prev, ok := out.Get(c.Account); ok {
			clusters = cast.ToSlice(prev)
		}
		out.Set(c.Account, append(clusters, map[string]any{"name": c.Name, "resources": items}))
	}
	return out, nil
}
