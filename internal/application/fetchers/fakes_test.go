package fetchers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/apptest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

var now = time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC)

func newRun(t *testing.T, raw map[string]any, locker *apptest.MemLocker, creds apptest.Creds) *application.Run {
	t.Helper()
	return application.NewRun(domain.NewConfig(raw, nil), locker, creds, zaptest.NewLogger(t), now)
}

type commitsCall struct {
	repo, branch, filepath string
	since                  time.Time
}

type fakeGitHub struct {
	commits     []domain.JSONObject
	commitCalls []commitsCall
	protection  domain.JSONObject
	repository  domain.JSONObject
	orgRepos    []string
	orgCalls    int
	collabs     map[string][]domain.JSONObject
	labels      []string
	issues      map[string][]domain.JSONObject
	queries     []string
	err         error
}

func (g *fakeGitHub) Commits(_ context.Context, repo, branch, filepath string, since time.Time) ([]domain.JSONObject, error) {
	g.commitCalls = append(g.commitCalls, commitsCall{repo, branch, filepath, since})
	return g.commits, g.err
}

func (g *fakeGitHub) BranchProtection(context.Context, string, string) (domain.JSONObject, error) {
	return g.protection, g.err
}

func (g *fakeGitHub) Repository(context.Context, string) (domain.JSONObject, error) {
	return g.repository, g.err
}

func (g *fakeGitHub) OrgRepoNames(context.Context, string) ([]string, error) {
	g.orgCalls++
	return g.orgRepos, g.err
}

func (g *fakeGitHub) Collaborators(_ context.Context, _, repo, _ string) ([]domain.JSONObject, error) {
	return g.collabs[repo], g.err
}

func (g *fakeGitHub) Forks(context.Context, string, string) ([]domain.JSONObject, error) {
	return nil, g.err
}

func (g *fakeGitHub) Teams(_ context.Context, _, repo string) ([]domain.JSONObject, error) {
	return []domain.JSONObject{{"name": repo + "-team"}}, g.err
}

func (g *fakeGitHub) Labels(context.Context, string) ([]string, error) {
	return g.labels, g.err
}

func (g *fakeGitHub) SearchIssues(_ context.Context, query string) ([]domain.JSONObject, error) {
	g.queries = append(g.queries, query)
	return g.issues[query], g.err
}

func githubFactory(gh *fakeGitHub, hosts *[]string) domain.GitHubFactory {
	return func(baseURL string) (domain.GitHubAPI, error) {
		if hosts != nil {
			*hosts = append(*hosts, baseURL)
		}
		return gh, nil
	}
}

type fakeZenhub struct {
	workspaces []domain.JSONObject
	boards     map[string]domain.JSONObject
}

func (z *fakeZenhub) Workspaces(context.Context, int64) ([]domain.JSONObject, error) {
	return z.workspaces, nil
}

func (z *fakeZenhub) Board(_ context.Context, id string, _ int64) (domain.JSONObject, error) {
	return z.boards[id], nil
}

type fakeAzure struct {
	paths  []string
	values []domain.JSONObject
}

func (a *fakeAzure) ListValues(_ context.Context, _ domain.AzureCredentials, apiPath string) ([]domain.JSONObject, error) {
	a.paths = append(a.paths, apiPath)
	return a.values, nil
}

type fakeIBM struct {
	clusters  []domain.JSONObject
	instances map[string]domain.JSONObject
	backups   map[string]domain.JSONObject
	regions   []string
	apiKeys   []string
}

func (f *fakeIBM) Tokens(_ context.Context, apiKey string) (domain.IAMTokens, error) {
	f.apiKeys = append(f.apiKeys, apiKey)
	return domain.IAMTokens{AccessToken: "access-" + apiKey, RefreshToken: "refresh"}, nil
}

func (f *fakeIBM) Clusters(context.Context, domain.IAMTokens) ([]domain.JSONObject, error) {
	return f.clusters, nil
}

func (f *fakeIBM) ClusterConfig(_ context.Context, _ domain.IAMTokens, id string) ([]byte, error) {
	return []byte("archive-" + id), nil
}

func (f *fakeIBM) OpenShiftToken(_ context.Context, server, _ string) (string, error) {
	return "oc-" + server, nil
}

func (f *fakeIBM) ResourceInstances(_ context.Context, _ domain.IAMTokens, rg string) (domain.JSONObject, error) {
	return f.instances[rg], nil
}

func (f *fakeIBM) DatabaseBackups(_ context.Context, _ domain.IAMTokens, region, crn string) (domain.JSONObject, error) {
	f.regions = append(f.regions, region)
	return f.backups[crn], nil
}

type fakeKube struct {
	targets []domain.KubeTarget
	failOn  string
}

func (k *fakeKube) Resources(_ context.Context, target domain.KubeTarget, types []string) (map[string][]any, error) {
	k.targets = append(k.targets, target)
	if k.failOn != "" && (target.Server == k.failOn || target.Kubeconfig == k.failOn) {
		return nil, errors.New("connection refused")
	}
	out := map[string][]any{}
	for _, t := range types {
		out[t] = []any{map[string]any{"kind": t}}
	}
	return out, nil
}

type fakeCOS struct {
	buckets map[string][]string
	// found maps endpoint to the buckets living there.
	found map[string][]string
}

func (c *fakeCOS) Buckets(_ context.Context, _, _, instance string) ([]string, error) {
	return c.buckets[instance], nil
}

func (c *fakeCOS) HeadBucket(_ context.Context, endpoint, _, bucket string) (domain.BucketHead, bool, error) {
	for _, b := range c.found[endpoint] {
		if b == bucket {
			return domain.BucketHead{
				URL:     endpoint + "/" + bucket,
				Headers: map[string]string{"ibm-sse-kp-enabled": "true"},
			}, true, nil
		}
	}
	return domain.BucketHead{}, false, nil
}

type fakePyPI struct{}

func (fakePyPI) Releases(_ context.Context, pkg string) ([]byte, error) {
	return []byte("<rss><channel><title>" + pkg + "</title></channel></rss>"), nil
}

type fakeCommands struct {
	stdout string
	err    error
	calls  []domain.Command
}

func (f *fakeCommands) Run(_ context.Context, cmd domain.Command) (string, string, error) {
	f.calls = append(f.calls, cmd)
	return f.stdout, "", f.err
}
