// Package github implements domain.GitHubAPI with go-github. Responses are
// kept as raw JSON objects so that evidence stores exactly what the API
// returned.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// PublicHost is the github.com base URL.
const PublicHost = "https://github.com"

const perPage = 100

// Client talks to one GitHub host.
type Client struct {
	gh  *gh.Client
	log *zap.Logger
}

// New creates a client for baseURL authenticated with token. Hosts other
// than github.com are treated as GitHub Enterprise.
func New(ctx context.Context, baseURL, token string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := gh.NewClient(hc)
	base := strings.TrimRight(baseURL, "/")
	if base != "" && base != PublicHost {
		var err error
		client, err = client.WithEnterpriseURLs(base+"/api/v3/", base+"/api/uploads/")
		if err != nil {
			return nil, fmt.Errorf("github client for %s: %w", base, err)
		}
	}
	return &Client{gh: client, log: log.With(zap.String("github", base))}, nil
}

// NewWithClient wraps an existing go-github client. Tests point it at an
// httptest server.
func NewWithClient(client *gh.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{gh: client, log: log}
}

// Factory builds a domain.GitHubFactory that reads the token from the
// github credentials section for github.com and github_enterprise otherwise.
func Factory(ctx context.Context, creds domain.Credentials, log *zap.Logger) domain.GitHubFactory {
	return func(baseURL string) (domain.GitHubAPI, error) {
		section := "github"
		if strings.TrimRight(baseURL, "/") != PublicHost {
			section = "github_enterprise"
		}
		token, _ := creds.Get(section, "token")
		return New(ctx, baseURL, token, log)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (*gh.Response, error) {
	u := path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.gh.Do(ctx, req, out)
	if err != nil {
		return resp, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

// paginate follows NextPage until exhausted, appending every page.
func (c *Client) paginate(ctx context.Context, path string, query url.Values) ([]domain.JSONObject, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(perPage))
	var all []domain.JSONObject
	page := 1
	for {
		query.Set("page", strconv.Itoa(page))
		var items []domain.JSONObject
		resp, err := c.get(ctx, path, query, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	c.log.Debug("paginated", zap.String("path", path), zap.Int("items", len(all)))
	return all, nil
}

// Commits lists commits of branch since the given time.
func (c *Client) Commits(ctx context.Context, repo, branch, filepath string, since time.Time) ([]domain.JSONObject, error) {
	q := url.Values{}
	q.Set("sha", branch)
	q.Set("since", since.UTC().Format(time.RFC3339))
	if filepath != "" {
		q.Set("path", filepath)
	}
	commits, err := c.paginate(ctx, fmt.Sprintf("repos/%s/commits", repo), q)
	if commits == nil && err == nil {
		commits = []domain.JSONObject{}
	}
	return commits, err
}

// BranchProtection returns the protection settings of branch.
func (c *Client) BranchProtection(ctx context.Context, repo, branch string) (domain.JSONObject, error) {
	var out domain.JSONObject
	_, err := c.get(ctx, fmt.Sprintf("repos/%s/branches/%s/protection", repo, url.PathEscape(branch)), nil, &out)
	return out, err
}

// Repository returns the repository details.
func (c *Client) Repository(ctx context.Context, repo string) (domain.JSONObject, error) {
	var out domain.JSONObject
	_, err := c.get(ctx, "repos/"+repo, nil, &out)
	return out, err
}

// OrgRepoNames lists the repository names of org.
func (c *Client) OrgRepoNames(ctx context.Context, org string) ([]string, error) {
	repos, err := c.paginate(ctx, fmt.Sprintf("orgs/%s/repos", org), nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		if n, ok := r["name"].(string); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

// Collaborators lists collaborators of owner/repo with the given
// affiliation (direct, outside, all).
func (c *Client) Collaborators(ctx context.Context, owner, repo, affiliation string) ([]domain.JSONObject, error) {
	q := url.Values{}
	q.Set("affiliation", affiliation)
	return c.paginate(ctx, fmt.Sprintf("repos/%s/%s/collaborators", owner, repo), q)
}

// Forks lists the forks of owner/repo.
func (c *Client) Forks(ctx context.Context, owner, repo string) ([]domain.JSONObject, error) {
	return c.paginate(ctx, fmt.Sprintf("repos/%s/%s/forks", owner, repo), nil)
}

// Teams lists the teams with access to owner/repo.
func (c *Client) Teams(ctx context.Context, owner, repo string) ([]domain.JSONObject, error) {
	return c.paginate(ctx, fmt.Sprintf("repos/%s/%s/teams", owner, repo), nil)
}

// Labels lists the label names of repo.
func (c *Client) Labels(ctx context.Context, repo string) ([]string, error) {
	labels, err := c.paginate(ctx, fmt.Sprintf("repos/%s/labels", repo), nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if n, ok := l["name"].(string); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

type searchPage struct {
	Items []domain.JSONObject `json:"items"`
}

// SearchIssues returns every issue matching query.
func (c *Client) SearchIssues(ctx context.Context, query string) ([]domain.JSONObject, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(perPage))
	var all []domain.JSONObject
	page := 1
	for {
		q.Set("page", strconv.Itoa(page))
		var out searchPage
		resp, err := c.get(ctx, "search/issues", q, &out)
		if err != nil {
			return nil, err
		}
		all = append(all, out.Items...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	return all, nil
}

var _ domain.GitHubAPI = (*Client)(nil)
