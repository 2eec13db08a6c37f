// Package kube lists Kubernetes API resources with client-go.
package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// namedGroup matches custom resource types such as
// "apigroup.example.com/v1/mycustom".
var namedGroup = regexp.MustCompile(`[^/]+/[^/]+/[^/]+`)

// ResourcePath returns the API path of a resource type: apis/<type> for
// named group types, api/v1/<type> for core types such as "pods".
func ResourcePath(resourceType string) string {
	if namedGroup.MatchString(resourceType) {
		return "/apis/" + resourceType
	}
	return "/api/v1/" + resourceType
}

// Client implements domain.KubeAPI.
type Client struct {
	log *zap.Logger
}

// New creates a client.
func New(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{log: log}
}

func restConfig(target domain.KubeTarget) (*rest.Config, error) {
	if target.Kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", target.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig %s: %w", target.Kubeconfig, err)
		}
		return cfg, nil
	}
	if target.Server == "" {
		return nil, fmt.Errorf("kubernetes target has neither server nor kubeconfig")
	}
	return &rest.Config{
		Host:            target.Server,
		BearerToken:     target.Token,
		TLSClientConfig: rest.TLSClientConfig{CAData: target.CAData},
	}, nil
}

type itemList struct {
	Items []any `json:"items"`
}

// Resources returns the items of every resource type known to the server.
// Types answered with 404 are left out.
func (c *Client) Resources(ctx context.Context, target domain.KubeTarget, types []string) (map[string][]any, error) {
	cfg, err := restConfig(target)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client for %s: %w", cfg.Host, err)
	}
	rc := clientset.Discovery().RESTClient()

	resources := map[string][]any{}
	for _, t := range types {
		raw, err := rc.Get().AbsPath(ResourcePath(t)).DoRaw(ctx)
		if err != nil {
			if k8serrors.IsNotFound(err) {
				c.log.Debug("resource type not served", zap.String("type", t), zap.String("server", cfg.Host))
				continue
			}
			return nil, fmt.Errorf("listing %s on %s: %w", t, cfg.Host, err)
		}
		var list itemList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", t, err)
		}
		if list.Items == nil {
			list.Items = []any{}
		}
		resources[t] = list.Items
	}
	return resources, nil
}

var _ domain.KubeAPI = (*Client)(nil)
