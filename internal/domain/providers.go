package domain

import (
	"context"
	"time"
)

// JSONObject is a decoded provider JSON object kept in its original shape.
type JSONObject = map[string]any

// GitHubAPI is the subset of the GitHub REST API the fetchers use. One
// instance serves one host.
type GitHubAPI interface {
	// Commits lists commits on branch since the given time. A non-empty
	// filepath restricts the listing to commits touching that path.
	Commits(ctx context.Context, repo, branch, filepath string, since time.Time) ([]JSONObject, error)
	BranchProtection(ctx context.Context, repo, branch string) (JSONObject, error)
	Repository(ctx context.Context, repo string) (JSONObject, error)
	OrgRepoNames(ctx context.Context, org string) ([]string, error)
	Collaborators(ctx context.Context, owner, repo, affiliation string) ([]JSONObject, error)
	Forks(ctx context.Context, owner, repo string) ([]JSONObject, error)
	Teams(ctx context.Context, owner, repo string) ([]JSONObject, error)
	Labels(ctx context.Context, repo string) ([]string, error)
	SearchIssues(ctx context.Context, query string) ([]JSONObject, error)
}

// GitHubFactory opens a client for a host base URL such as https://github.com.
type GitHubFactory func(baseURL string) (GitHubAPI, error)

// AzureCredentials identifies a service principal and its subscription.
type AzureCredentials struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	SubscriptionID string
}

// AzureAPI lists Azure management resources, following nextLink pages.
type AzureAPI interface {
	ListValues(ctx context.Context, creds AzureCredentials, apiPath string) ([]JSONObject, error)
}

// IAMTokens are the tokens returned by the IBM Cloud IAM apikey exchange.
type IAMTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IBMCloudAPI covers IAM, the containers service, the resource controller
// and the cloud databases API.
type IBMCloudAPI interface {
	Tokens(ctx context.Context, apiKey string) (IAMTokens, error)
	Clusters(ctx context.Context, tokens IAMTokens) ([]JSONObject, error)
	ClusterConfig(ctx context.Context, tokens IAMTokens, clusterID string) ([]byte, error)
	OpenShiftToken(ctx context.Context, serverURL, apiKey string) (string, error)
	ResourceInstances(ctx context.Context, tokens IAMTokens, resourceGroupID string) (JSONObject, error)
	DatabaseBackups(ctx context.Context, tokens IAMTokens, region, crn string) (JSONObject, error)
}

// KubeTarget addresses one Kubernetes API server. Either Server and Token
// or Kubeconfig must be set.
type KubeTarget struct {
	Server     string
	Token      string
	CAData     []byte
	Kubeconfig string
}

// KubeAPI lists resources of the given types on a cluster. Types that the
// server does not know are skipped.
type KubeAPI interface {
	Resources(ctx context.Context, target KubeTarget, types []string) (map[string][]any, error)
}

// BucketHead is the response to a HEAD request on a bucket.
type BucketHead struct {
	URL     string
	Headers map[string]string
}

// COSAPI reads Cloud Object Storage bucket metadata.
type COSAPI interface {
	Buckets(ctx context.Context, endpoint, token, instance string) ([]string, error)
	// HeadBucket returns found=false when the bucket is not in this region.
	HeadBucket(ctx context.Context, endpoint, token, bucket string) (head BucketHead, found bool, err error)
}

// ZenhubAPI reads workspaces and boards.
type ZenhubAPI interface {
	Workspaces(ctx context.Context, repoID int64) ([]JSONObject, error)
	Board(ctx context.Context, workspaceID string, repoID int64) (JSONObject, error)
}

// ZenhubFactory opens a Zenhub client for an API root such as
// https://api.zenhub.com.
type ZenhubFactory func(apiRoot string) (ZenhubAPI, error)

// PyPIAPI fetches a package's releases RSS feed.
type PyPIAPI interface {
	Releases(ctx context.Context, pkg string) ([]byte, error)
}

// Command is a subprocess invocation. Secrets are redacted from errors.
type Command struct {
	Args    []string
	Secrets []string
	Timeout time.Duration
}

// CommandRunner runs a subprocess and returns its output.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (stdout, stderr string, err error)
}
