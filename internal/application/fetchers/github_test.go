package fetchers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/apptest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

func fetcher(t *testing.T, deps fetchers.Deps, name string) application.Fetcher {
	t.Helper()
	for _, f := range fetchers.All(deps) {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("no fetcher named %s", name)
	return nil
}

func TestAll_NamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range fetchers.All(fetchers.Deps{}) {
		assert.False(t, seen[f.Name()], "duplicate %s", f.Name())
		seen[f.Name()] = true
		assert.NotEmpty(t, f.Description())
	}
	assert.Len(t, seen, 20)
}

func TestRecentCommits_DefaultsToLockerMaster(t *testing.T) {
	gh := &fakeGitHub{commits: []domain.JSONObject{{"sha": "abc"}}}
	var hosts []string
	locker := apptest.NewMemLocker(now)
	run := newRun(t, nil, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, &hosts)}, "github.recent_commits")
	require.NoError(t, f.Fetch(context.Background(), run))

	p := fetchers.RawPath("auditree", "gh_org_locker_master_recent_commits.json")
	assert.Equal(t, []string{p}, run.Written())
	assert.JSONEq(t, `[{"sha":"abc"}]`, string(locker.Content(p)))
	assert.Equal(t, []string{"https://github.com"}, hosts)
	require.Len(t, gh.commitCalls, 1)
	call := gh.commitCalls[0]
	assert.Equal(t, "org/locker", call.repo)
	assert.Equal(t, "master", call.branch)
	assert.Empty(t, call.filepath)
	assert.Equal(t, now.Add(-2*domain.Day), call.since)
}

func TestRecentCommits_ContinuesFromLastUpdate(t *testing.T) {
	gh := &fakeGitHub{}
	locker := apptest.NewMemLocker(now)
	p := fetchers.RawPath("auditree", "gh_org_locker_master_recent_commits.json")
	last := now.Add(-30 * time.Hour)
	locker.SeedMetadata(p, domain.EvidenceMetadata{LastUpdate: last, TTL: domain.Day})
	run := newRun(t, nil, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.recent_commits")
	require.NoError(t, f.Fetch(context.Background(), run))

	require.Len(t, gh.commitCalls, 1)
	assert.Equal(t, last, gh.commitCalls[0].since)
	assert.JSONEq(t, `[]`, string(locker.Content(p)))
}

func TestRecentCommits_UnsupportedServiceDoesNotStopOthers(t *testing.T) {
	gh := &fakeGitHub{}
	locker := apptest.NewMemLocker(now)
	run := newRun(t, map[string]any{
		"org": map[string]any{"auditree": map[string]any{"repo_integrity": map[string]any{
			"branches": map[string]any{
				"https://github.com/org/repo":   []any{"main"},
				"https://gitlab.com/org/other": []any{"main"},
			},
		}}},
	}, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.recent_commits")
	err := f.Fetch(context.Background(), run)

	require.Error(t, err)
	assert.ErrorIs(t, err, evidence.ErrNotImplemented)
	assert.Equal(t, []string{fetchers.RawPath("auditree", "gh_org_repo_main_recent_commits.json")}, run.Written())
}

func TestFilepathCommits_StartsFromNow(t *testing.T) {
	gh := &fakeGitHub{}
	locker := apptest.NewMemLocker(now)
	run := newRun(t, map[string]any{
		"org": map[string]any{"auditree": map[string]any{"repo_integrity": map[string]any{
			"filepaths": map[string]any{
				"https://github.com/org/repo": map[string]any{"main": []any{"docs/README.md"}},
			},
		}}},
	}, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.filepath_commits")
	require.NoError(t, f.Fetch(context.Background(), run))

	require.Len(t, gh.commitCalls, 1)
	assert.Equal(t, commitsCall{repo: "org/repo", branch: "main", filepath: "docs/README.md", since: now}, gh.commitCalls[0])
	name := evidence.FilepathCommitsName(evidence.GitHub, "org/repo", "main", "docs/README.md")
	assert.Equal(t, []string{fetchers.RawPath("auditree", name)}, run.Written())
}

func TestBranchProtectionAndRepoMetadata(t *testing.T) {
	gh := &fakeGitHub{
		protection: domain.JSONObject{"enforce_admins": map[string]any{"enabled": true}},
		repository: domain.JSONObject{"id": 7, "size": 1024},
	}
	locker := apptest.NewMemLocker(now)
	deps := fetchers.Deps{GitHub: githubFactory(gh, nil)}

	require.NoError(t, fetcher(t, deps, "github.branch_protection").Fetch(context.Background(), newRun(t, nil, locker, nil)))
	require.NoError(t, fetcher(t, deps, "github.repo_metadata").Fetch(context.Background(), newRun(t, nil, locker, nil)))

	assert.JSONEq(t, `{"enforce_admins":{"enabled":true}}`,
		string(locker.Content(fetchers.RawPath("auditree", "gh_org_locker_master_branch_protection.json"))))
	assert.JSONEq(t, `{"id":7,"size":1024}`,
		string(locker.Content(fetchers.RawPath("auditree", "gh_org_locker_repo_metadata.json"))))
}

func TestRepoMetadata_WithoutGitHubIsNotConfigured(t *testing.T) {
	run := newRun(t, nil, apptest.NewMemLocker(now), nil)
	err := fetcher(t, fetchers.Deps{}, "github.repo_metadata").Fetch(context.Background(), run)
	assert.ErrorIs(t, err, fetchers.ErrNotConfigured)
	assert.Empty(t, run.Written())
}

func TestFreshEvidenceIsNotRefetched(t *testing.T) {
	gh := &fakeGitHub{}
	locker := apptest.NewMemLocker(now)
	p := fetchers.RawPath("auditree", "gh_org_locker_repo_metadata.json")
	locker.Seed(p, []byte(`{"id":1}`), now.Add(-time.Hour), domain.Day)
	run := newRun(t, nil, locker, nil)

	require.NoError(t, fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.repo_metadata").Fetch(context.Background(), run))

	assert.Equal(t, []string{p}, run.Skipped())
	assert.Equal(t, 1, locker.Versions(p))
}

func TestOrgCollaborators_ListsReposOnce(t *testing.T) {
	gh := &fakeGitHub{
		orgRepos: []string{"alpha", "beta"},
		collabs:  map[string][]domain.JSONObject{"alpha": {{"login": "jdoe"}}},
	}
	locker := apptest.NewMemLocker(now)
	orgURL := "https://github.com/my-org"
	run := newRun(t, map[string]any{
		"org": map[string]any{"permissions": map[string]any{"org_integrity": map[string]any{
			"orgs": []any{map[string]any{"url": orgURL, "collaborator_types": []any{"direct", "outside"}}},
		}}},
	}, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.org_collaborators")
	require.NoError(t, f.Fetch(context.Background(), run))

	assert.Equal(t, 1, gh.orgCalls)
	direct := fetchers.RawPath("permissions", evidence.CollaboratorsName(evidence.GitHub, "direct", orgURL))
	assert.JSONEq(t, `{"alpha":[{"login":"jdoe"}],"beta":[]}`, string(locker.Content(direct)))
	md, err := locker.GetEvidenceMetadata(direct)
	require.NoError(t, err)
	assert.Equal(t, "Direct collaborators of the my-org GH org", md.Description)
	assert.Len(t, run.Written(), 2)
}

func TestOrgPermissions_ConfiguredRepos(t *testing.T) {
	gh := &fakeGitHub{}
	locker := apptest.NewMemLocker(now)
	orgURL := "https://github.com/my-org"
	run := newRun(t, map[string]any{
		"org": map[string]any{"permissions": map[string]any{"org_integrity": map[string]any{
			"orgs": []any{map[string]any{"url": orgURL, "repos": []any{"alpha"}}},
		}}},
	}, locker, nil)

	f := fetcher(t, fetchers.Deps{GitHub: githubFactory(gh, nil)}, "github.org_permissions")
	require.NoError(t, f.Fetch(context.Background(), run))

	assert.Zero(t, gh.orgCalls)
	forks := fetchers.RawPath("permissions", evidence.ForksName(evidence.GitHub, orgURL))
	teams := fetchers.RawPath("permissions", evidence.TeamsName(evidence.GitHub, orgURL))
	assert.JSONEq(t, `{"alpha":[]}`, string(locker.Content(forks)))
	assert.JSONEq(t, `{"alpha":[{"name":"alpha-team"}]}`, string(locker.Content(teams)))
}

func TestOrgs_ReadsExceptions(t *testing.T) {
	cfg := domain.NewConfig(map[string]any{
		"org": map[string]any{"permissions": map[string]any{"org_integrity": map[string]any{
			"orgs": []any{map[string]any{
				"url": "https://github.com/my-org",
				"exceptions": []any{
					map[string]any{"user": "bot"},
					map[string]any{"user": "jdoe", "repos": []any{"alpha"}},
				},
			}},
		}}},
	}, nil)

	orgs := fetchers.Orgs(cfg)

	require.Len(t, orgs, 1)
	assert.Equal(t, "my-org", orgs[0].Name)
	assert.Equal(t, "https://github.com", orgs[0].Host)
	assert.Equal(t, []string{"all"}, orgs[0].CollaboratorTypes)
	require.Len(t, orgs[0].Exceptions, 2)
	assert.Nil(t, orgs[0].Exceptions[0].Repos)
	assert.Equal(t, []string{"alpha"}, orgs[0].Exceptions[1].Repos)
}
