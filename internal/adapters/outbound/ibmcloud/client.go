// Package ibmcloud talks to IBM Cloud IAM, the Kubernetes service, the
// resource controller and the Cloud Databases API.
package ibmcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const apiKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"

// Endpoints are the service roots. DatabasesURL is a format string taking
// the region.
type Endpoints struct {
	IAMURL             string
	ContainersURL      string
	ResourceController string
	DatabasesURL       string
}

// DefaultEndpoints returns the public IBM Cloud endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		IAMURL:             "https://iam.cloud.ibm.com",
		ContainersURL:      "https://containers.cloud.ibm.com",
		ResourceController: "https://resource-controller.cloud.ibm.com",
		DatabasesURL:       "https://api.%s.databases.cloud.ibm.com",
	}
}

// Client implements domain.IBMCloudAPI.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a client. A nil httpClient uses the rest package default.
func New(endpoints Endpoints, httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{endpoints: endpoints, httpClient: httpClient, log: log}
}

func (c *Client) session(base string, opts ...rest.Option) (*rest.Client, error) {
	all := []rest.Option{rest.WithLogger(c.log), rest.WithHeader("Accept", "application/json")}
	if c.httpClient != nil {
		all = append(all, rest.WithHTTPClient(c.httpClient))
	}
	return rest.New(base, append(all, opts...)...)
}

func bearer(tokens domain.IAMTokens) rest.Option {
	return rest.WithHeader("Authorization", "Bearer "+tokens.AccessToken)
}

// Tokens exchanges an API key for IAM access and refresh tokens.
func (c *Client) Tokens(ctx context.Context, apiKey string) (domain.IAMTokens, error) {
	var tokens domain.IAMTokens
	s, err := c.session(c.endpoints.IAMURL)
	if err != nil {
		return tokens, err
	}
	form := url.Values{}
	form.Set("grant_type", apiKeyGrantType)
	form.Set("apikey", apiKey)
	basic := http.Header{"Authorization": {"Basic " + basicAuth("bx", "bx")}}
	if err := s.PostForm(ctx, "/identity/token", form, basic, &tokens); err != nil {
		return tokens, fmt.Errorf("iam token: %w", err)
	}
	return tokens, nil
}

// Clusters lists the Kubernetes and OpenShift clusters of the account.
func (c *Client) Clusters(ctx context.Context, tokens domain.IAMTokens) ([]domain.JSONObject, error) {
	s, err := c.session(c.endpoints.ContainersURL, bearer(tokens))
	if err != nil {
		return nil, err
	}
	clusters := []domain.JSONObject{}
	if err := s.GetJSON(ctx, "/global/v1/clusters", nil, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// ClusterConfig downloads the zipped kubeconfig bundle of a cluster.
func (c *Client) ClusterConfig(ctx context.Context, tokens domain.IAMTokens, clusterID string) ([]byte, error) {
	s, err := c.session(c.endpoints.ContainersURL,
		bearer(tokens),
		rest.WithHeader("X-Auth-Refresh-Token", tokens.RefreshToken),
	)
	if err != nil {
		return nil, err
	}
	resp, err := s.Do(ctx, rest.Request{Path: fmt.Sprintf("/global/v1/clusters/%s/config", url.PathEscape(clusterID))})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// OpenShiftToken obtains a bearer token for an OpenShift cluster by running
// the challenging-client implicit flow against its OAuth server.
func (c *Client) OpenShiftToken(ctx context.Context, serverURL, apiKey string) (string, error) {
	s, err := c.session(serverURL)
	if err != nil {
		return "", err
	}
	var discovery struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := s.GetJSON(ctx, "/.well-known/oauth-authorization-server", nil, &discovery); err != nil {
		return "", err
	}
	endpoint, err := url.Parse(discovery.TokenEndpoint)
	if err != nil || endpoint.Host == "" {
		return "", fmt.Errorf("invalid token endpoint %q", discovery.TokenEndpoint)
	}

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	if c.httpClient != nil {
		noRedirect.Transport = c.httpClient.Transport
		noRedirect.Timeout = c.httpClient.Timeout
	}
	oauth, err := rest.New(endpoint.Scheme+"://"+endpoint.Host,
		rest.WithHTTPClient(noRedirect),
		rest.WithLogger(c.log),
	)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", "openshift-challenging-client")
	q.Set("response_type", "token")
	resp, err := oauth.Do(ctx, rest.Request{
		Path:  "/oauth/authorize",
		Query: q,
		Header: http.Header{
			"Authorization": {"Basic " + basicAuth("apikey", apiKey)},
			"X-Csrf-Token":  {"a"},
		},
		Accept: []int{http.StatusFound, http.StatusSeeOther},
	})
	if err != nil {
		return "", err
	}
	return accessTokenFromLocation(resp.Header.Get("Location"))
}

// accessTokenFromLocation extracts access_token from the redirect target,
// whose parameters live in the URL fragment.
func accessTokenFromLocation(location string) (string, error) {
	const keyword = "access_token="
	start := strings.Index(location, keyword)
	if start < 0 {
		return "", errors.New("no access token in authorize redirect")
	}
	token := location[start+len(keyword):]
	if end := strings.IndexByte(token, '&'); end >= 0 {
		token = token[:end]
	}
	return token, nil
}

// ResourceInstances lists the Cloud Databases instances of a resource group.
func (c *Client) ResourceInstances(ctx context.Context, tokens domain.IAMTokens, resourceGroupID string) (domain.JSONObject, error) {
	s, err := c.session(c.endpoints.ResourceController, bearer(tokens))
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("resource_group_id", resourceGroupID)
	q.Set("resource_plan_id", "databases-for-*")
	var out domain.JSONObject
	if err := s.GetJSON(ctx, "/v1/resource_instances", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DatabaseBackups lists the backups of the deployment identified by crn.
func (c *Client) DatabaseBackups(ctx context.Context, tokens domain.IAMTokens, region, crn string) (domain.JSONObject, error) {
	s, err := c.session(fmt.Sprintf(c.endpoints.DatabasesURL, region), bearer(tokens))
	if err != nil {
		return nil, err
	}
	var out domain.JSONObject
	if err := s.GetJSON(ctx, "/v4/ibm/deployments/"+url.QueryEscape(crn)+"/backups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.IBMCloudAPI = (*Client)(nil)
