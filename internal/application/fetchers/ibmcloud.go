package fetchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// ClusterListPath is the IBM Cloud cluster inventory the resource fetchers
// read.
const ClusterListPath = "raw/ibm_cloud/cluster_list.json"

// DefaultResourceTypes are listed on every cluster when no types are
// configured.
var DefaultResourceTypes = []string{"nodes", "pods", "configmaps"}

// ClusterList stores the clusters of every configured IBM Cloud account,
// listed through the containers API or the ibmcloud CLI.
type ClusterList struct {
	ibm domain.IBMCloudAPI
	cli ClusterLister
}

func (*ClusterList) Name() string        { return "ibm_cloud.cluster_list" }
func (*ClusterList) Description() string { return "IBM Cloud cluster list inventory" }

func (f *ClusterList) Fetch(ctx context.Context, run *application.Run) error {
	method := run.Config.String("org.ibm_cloud.cluster_list.method", "api")
	if method != "api" && method != "cli" {
		return fmt.Errorf("org.ibm_cloud.cluster_list.method %q: want api or cli", method)
	}
	ev := domain.NewRawEvidence("ibm_cloud", "cluster_list.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		out := newObject()
		for _, account := range run.Config.StringSlice("org.ibm_cloud.accounts", nil) {
			apiKey, err := domain.AccountIBMCloudAPIKey(run.Creds, account)
			if err != nil {
				return err
			}
			clusters, err := f.clusters(ctx, method, apiKey)
			if err != nil {
				return fmt.Errorf("listing clusters of %s: %w", account, err)
			}
			run.Log.Debug("listed clusters", zap.String("account", account), zap.String("method", method), zap.Int("count", len(clusters)))
			out.Set(account, orEmpty(clusters))
		}
		return ev.SetJSON(out)
	})
}

func (f *ClusterList) clusters(ctx context.Context, method, apiKey string) ([]domain.JSONObject, error) {
	if method == "cli" {
		if f.cli == nil {
			return nil, notConfigured("ibmcloud cli")
		}
		return f.cli.Clusters(ctx, apiKey)
	}
	if f.ibm == nil {
		return nil, notConfigured("ibm cloud")
	}
	tokens, err := f.ibm.Tokens(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return f.ibm.Clusters(ctx, tokens)
}

// clusterWalker reads the stored IBM Cloud inventory and lists resources on
// each cluster in it.
type clusterWalker struct {
	ibm   domain.IBMCloudAPI
	kube  domain.KubeAPI
	creds ClusterCredentials
}

// inventory is the decoded cluster list: account to clusters, in document
// order.
type inventory struct {
	accounts []string
	clusters map[string][]domain.JSONObject
}

func readInventory(run *application.Run) (inventory, error) {
	ev, err := run.Evidence(ClusterListPath)
	if err != nil {
		return inventory{}, err
	}
	inv := inventory{clusters: map[string][]domain.JSONObject{}}
	if err := json.Unmarshal(ev.Content, &inv.clusters); err != nil {
		return inventory{}, fmt.Errorf("parsing %s: %w", ClusterListPath, err)
	}
	inv.accounts = domain.OrderedKeys(inv.clusters, jsonKeys(ev.Content))
	return inv, nil
}

// jsonKeys returns the top level keys of a JSON object in document order.
func jsonKeys(content []byte) []string {
	var keys []string
	dec := json.NewDecoder(bytes.NewReader(content))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		k, _ := tok.(string)
		keys = append(keys, k)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// target resolves the API server address and credentials of one cluster.
// ok is false for cluster types that are not supported.
func (l clusterWalker) target(ctx context.Context, tokens domain.IAMTokens, apiKey string, cluster domain.JSONObject) (domain.KubeTarget, bool, error) {
	server := cast.ToString(cluster["serverURL"])
	switch cast.ToString(cluster["type"]) {
	case "kubernetes":
		if l.creds == nil {
			return domain.KubeTarget{}, false, notConfigured("cluster config parser")
		}
		archive, err := l.ibm.ClusterConfig(ctx, tokens, cast.ToString(cluster["id"]))
		if err != nil {
			return domain.KubeTarget{}, false, err
		}
		token, ca, err := l.creds(archive)
		if err != nil {
			return domain.KubeTarget{}, false, err
		}
		return domain.KubeTarget{Server: server, Token: token, CAData: ca}, true, nil
	case "openshift":
		token, err := l.ibm.OpenShiftToken(ctx, server, apiKey)
		if err != nil {
			return domain.KubeTarget{}, false, err
		}
		return domain.KubeTarget{Server: server, Token: token}, true, nil
	default:
		return domain.KubeTarget{}, false, nil
	}
}

// resources lists types on every cluster of the inventory. Each cluster is
// returned with a "resources" field added. With tolerate set a failing
// cluster is logged and left out; otherwise the first failure ends the
// listing.
func (l clusterWalker) resources(ctx context.Context, run *application.Run, types []string, tolerate bool) (*object, error) {
	if l.ibm == nil || l.kube == nil {
		return nil, notConfigured("ibm cloud or kubernetes")
	}
	inv, err := readInventory(run)
	if err != nil {
		return nil, err
	}
	out := newObject()
	for _, account := range inv.accounts {
		apiKey, err := domain.AccountIBMCloudAPIKey(run.Creds, account)
		if err != nil {
			return nil, err
		}
		tokens, err := l.ibm.Tokens(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("iam tokens for %s: %w", account, err)
		}
		clusters := []domain.JSONObject{}
		for _, cluster := range inv.clusters[account] {
			name := cast.ToString(cluster["name"])
			log := run.Log.With(zap.String("account", account), zap.String("cluster", name))
			target, ok, err := l.target(ctx, tokens, apiKey, cluster)
			if err == nil && !ok {
				log.Warn("ignoring unsupported cluster type", zap.String("type", cast.ToString(cluster["type"])))
				clusters = append(clusters, cluster)
				continue
			}
			var res map[string][]any
			if err == nil {
				res, err = l.kube.Resources(ctx, target, types)
			}
			if err != nil {
				if !tolerate {
					return nil, fmt.Errorf("cluster %s of %s: %w", name, account, err)
				}
				log.Error("failed to get cluster resources", zap.Error(err))
				continue
			}
			cluster["resources"] = res
			clusters = append(clusters, cluster)
		}
		out.Set(account, clusters)
	}
	return out, nil
}

// ClusterResources stores the resources of every cluster in the IBM Cloud
// inventory.
type ClusterResources struct {
	clusterWalker
}

func (*ClusterResources) Name() string        { return "ibm_cloud.cluster_resources" }
func (*ClusterResources) Description() string { return "IBM Cloud Kubernetes cluster resources" }

func (f *ClusterResources) Fetch(ctx context.Context, run *application.Run) error {
	types := run.Config.StringSlice("org.ibm_cloud.cluster_resources.types", DefaultResourceTypes)
	ev := domain.NewRawEvidence("ibm_cloud", "cluster_resources.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		res, err := f.resources(ctx, run, types, false)
		if err != nil {
			return err
		}
		return ev.SetJSON(res)
	})
}
