// Package fetchers collects raw evidence from the providers named in the
// configuration. Each fetcher walks its configured targets in document
// order and stores one evidence file per target.
package fetchers

import (
	"context"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// ClusterLister lists IBM Cloud clusters through the ibmcloud CLI.
type ClusterLister interface {
	Clusters(ctx context.Context, apiKey string) ([]domain.JSONObject, error)
}

// ClusterCredentials extracts the bearer token and CA bundle from an IKS
// cluster config archive.
type ClusterCredentials func(archive []byte) (token string, ca []byte, err error)

// Deps are the provider ports the fetchers call. A fetcher whose port is
// nil fails with ErrNotConfigured.
type Deps struct {
	GitHub             domain.GitHubFactory
	Zenhub             domain.ZenhubFactory
	Azure              domain.AzureAPI
	IBMCloud           domain.IBMCloudAPI
	CLIClusters        ClusterLister
	ClusterCredentials ClusterCredentials
	Kube               domain.KubeAPI
	COS                domain.COSAPI
	// COSEndpoint maps a region to its S3 endpoint.
	COSEndpoint func(region string) string
	PyPI        domain.PyPIAPI
	// Commands runs local tools such as pip.
	Commands domain.CommandRunner
}

// ErrNotConfigured is returned when a fetcher runs without its provider.
var ErrNotConfigured = errors.New("provider not configured")

// All returns every fetcher in registration order.
func All(deps Deps) []application.Fetcher {
	gh := &githubPool{factory: deps.GitHub}
	clusters := clusterWalker{ibm: deps.IBMCloud, kube: deps.Kube, creds: deps.ClusterCredentials}
	return []application.Fetcher{
		&AbandonedEvidence{},
		&ComplianceConfig{},
		&PythonPackages{pypi: deps.PyPI, runner: deps.Commands},
		&RecentCommits{pool: gh},
		&FilepathCommits{pool: gh},
		&BranchProtection{pool: gh},
		&RepoMetadata{pool: gh},
		&OrgCollaborators{orgRepos: orgRepos{pool: gh}},
		&OrgPermissions{orgRepos: orgRepos{pool: gh}},
		&Issues{pool: gh},
		&ZenhubWorkspaces{github: gh, zenhub: &zenhubPool{factory: deps.Zenhub}},
		&AzureAssessmentsMetadata{azure: deps.Azure},
		&AzureSubAssessments{azure: deps.Azure},
		&ClusterList{ibm: deps.IBMCloud, cli: deps.CLIClusters},
		&ClusterResources{clusterWalker: clusters},
		&KubeClusterList{},
		&KubeClusterResource{clusterWalker: clusters},
		&Databases{ibm: deps.IBMCloud},
		&Backups{ibm: deps.IBMCloud},
		&BucketMetadata{ibm: deps.IBMCloud, cos: deps.COS, endpoint: deps.COSEndpoint},
	}
}

func notConfigured(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotConfigured)
}

// githubPool keeps one client per host base URL for the life of the
// fetcher set.
type githubPool struct {
	factory domain.GitHubFactory
	clients map[string]domain.GitHubAPI
}

func (p *githubPool) client(baseURL string) (domain.GitHubAPI, error) {
	if c, ok := p.clients[baseURL]; ok {
		return c, nil
	}
	if p.factory == nil {
		return nil, notConfigured("github")
	}
	c, err := p.factory(baseURL)
	if err != nil {
		return nil, fmt.Errorf("opening github client for %s: %w", baseURL, err)
	}
	if p.clients == nil {
		p.clients = map[string]domain.GitHubAPI{}
	}
	p.clients[baseURL] = c
	return c, nil
}

// repo returns the client serving ref. Only GitHub hosts are implemented.
func (p *githubPool) repo(ref evidence.RepoRef) (domain.GitHubAPI, error) {
	if ref.Service != evidence.GitHub {
		return nil, &evidence.UnsupportedServiceError{Service: ref.Service}
	}
	return p.client(ref.BaseURL)
}

type zenhubPool struct {
	factory domain.ZenhubFactory
	clients map[string]domain.ZenhubAPI
}

func (p *zenhubPool) client(apiRoot string) (domain.ZenhubAPI, error) {
	if c, ok := p.clients[apiRoot]; ok {
		return c, nil
	}
	if p.factory == nil {
		return nil, notConfigured("zenhub")
	}
	c, err := p.factory(apiRoot)
	if err != nil {
		return nil, fmt.Errorf("opening zenhub client for %s: %w", apiRoot, err)
	}
	if p.clients == nil {
		p.clients = map[string]domain.ZenhubAPI{}
	}
	p.clients[apiRoot] = c
	return c, nil
}

// object is a JSON object that keeps its keys in insertion order, so
// evidence follows configuration order.
type object = orderedmap.OrderedMap[string, any]

func newObject() *object {
	return orderedmap.New[string, any]()
}

// orEmpty turns a nil list into an empty one so evidence reads [] not null.
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
