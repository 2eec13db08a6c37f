package fetchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// Default hosts of the issue management integrations.
const (
	GitHubHost    = "https://github.com"
	ZenhubAPIRoot = "https://api.zenhub.com"
)

var labelFilters = map[string]func(label, want string) bool{
	"equals":     func(l, w string) bool { return l == w },
	"contains":   strings.Contains,
	"startswith": strings.HasPrefix,
	"endswith":   strings.HasSuffix,
}

// Issues stores the GitHub issues matching each configured repository's
// search, or its states and label filters.
type Issues struct {
	pool *githubPool
}

func (*Issues) Name() string        { return "github.issues" }
func (*Issues) Description() string { return "Issues of the tracked repositories" }

func (f *Issues) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for i, m := range run.Config.Maps("org.issue_mgmt.github") {
		host := cast.ToString(m["host"])
		if host == "" {
			host = GitHubHost
		}
		repo := cast.ToString(m["repo"])
		if repo == "" {
			errs = append(errs, fmt.Errorf("org.issue_mgmt.github[%d] has no repo", i))
			continue
		}
		desc := fmt.Sprintf("Github issues for %s/%s repository", host, repo)
		ev := domain.NewRawEvidence("issues", evidence.IssuesName(host, repo), domain.Day, desc)
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			gh, err := f.pool.client(host)
			if err != nil {
				return err
			}
			searches, err := issueSearches(ctx, gh, repo, m)
			if err != nil {
				return err
			}
			issues := []domain.JSONObject{}
			seen := map[string]bool{}
			for _, q := range searches {
				found, err := gh.SearchIssues(ctx, q)
				if err != nil {
					return fmt.Errorf("searching %q: %w", q, err)
				}
				for _, issue := range found {
					id := cast.ToString(issue["id"])
					if seen[id] {
						continue
					}
					seen[id] = true
					issues = append(issues, issue)
				}
			}
			run.Log.Debug("fetched issues", zap.String("repo", repo), zap.Int("searches", len(searches)), zap.Int("count", len(issues)))
			return ev.SetJSON(issues)
		}))
	}
	return errors.Join(errs...)
}

// issueSearches composes the search queries of one repository entry. A
// literal search wins; otherwise states narrow a base query that is run once
// per matching label. Without labels nothing is searched.
func issueSearches(ctx context.Context, gh domain.GitHubAPI, repo string, m map[string]any) ([]string, error) {
	base := fmt.Sprintf("repo:%s is:issue", repo)
	if search, ok := m["search"]; ok {
		return []string{base + " " + cast.ToString(search)}, nil
	}
	states := []string{"open"}
	if s, ok := m["states"]; ok {
		states = cast.ToStringSlice(s)
	}
	for _, state := range states {
		base += " is:" + state
	}
	labels, err := matchingLabels(ctx, gh, repo, cast.ToStringMap(m["labels"]))
	if err != nil {
		return nil, err
	}
	searches := make([]string, 0, len(labels))
	for _, label := range labels {
		searches = append(searches, fmt.Sprintf("%s label:\"%s\"", base, label))
	}
	return searches, nil
}

// matchingLabels returns the repository labels selected by filters, a map
// of operator (equals, contains, startswith, endswith) to values, in the
// repository's label order.
func matchingLabels(ctx context.Context, gh domain.GitHubAPI, repo string, filters map[string]any) ([]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	for op := range filters {
		if _, ok := labelFilters[op]; !ok {
			return nil, fmt.Errorf("unknown label filter %q", op)
		}
	}
	all, err := gh.Labels(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("listing labels of %s: %w", repo, err)
	}
	var out []string
	for _, label := range all {
		if labelSelected(label, filters) {
			out = append(out, label)
		}
	}
	return out, nil
}

func labelSelected(label string, filters map[string]any) bool {
	for op, values := range filters {
		match := labelFilters[op]
		for _, want := range cast.ToStringSlice(values) {
			if match(label, want) {
				return true
			}
		}
	}
	return false
}

// ZenhubWorkspaces stores the Zenhub boards of each configured repository,
// keyed by workspace name.
type ZenhubWorkspaces struct {
	github *githubPool
	zenhub *zenhubPool
}

func (*ZenhubWorkspaces) Name() string        { return "zenhub.workspaces" }
func (*ZenhubWorkspaces) Description() string { return "Zenhub workspaces of the tracked repositories" }

func (f *ZenhubWorkspaces) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for i, m := range run.Config.Maps("org.issue_mgmt.zenhub") {
		host := cast.ToString(m["github_host"])
		if host == "" {
			host = GitHubHost
		}
		root := cast.ToString(m["api_root"])
		if root == "" {
			root = ZenhubAPIRoot
		}
		repo := cast.ToString(m["github_repo"])
		if repo == "" {
			errs = append(errs, fmt.Errorf("org.issue_mgmt.zenhub[%d] has no github_repo", i))
			continue
		}
		names := cast.ToStringSlice(m["workspaces"])
		desc := fmt.Sprintf("Zenhub workspaces for %s/%s repository", host, repo)
		ev := domain.NewRawEvidence("issues", evidence.ZenhubWorkspacesName(host, repo), domain.Day, desc)
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			boards, err := f.boards(ctx, host, root, repo, names)
			if err != nil {
				return err
			}
			return ev.SetJSON(boards)
		}))
	}
	return errors.Join(errs...)
}

func (f *ZenhubWorkspaces) boards(ctx context.Context, host, root, repo string, names []string) (*object, error) {
	gh, err := f.github.client(host)
	if err != nil {
		return nil, err
	}
	zh, err := f.zenhub.client(root)
	if err != nil {
		return nil, err
	}
	details, err := gh.Repository(ctx, repo)
	if err != nil {
		return nil, err
	}
	repoID, err := cast.ToInt64E(details["id"])
	if err != nil {
		return nil, fmt.Errorf("repository %s has no numeric id: %w", repo, err)
	}
	workspaces, err := zh.Workspaces(ctx, repoID)
	if err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}
	out := newObject()
	for _, ws := range workspaces {
		name := cast.ToString(ws["name"])
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		board, err := zh.Board(ctx, cast.ToString(ws["id"]), repoID)
		if err != nil {
			return nil, fmt.Errorf("board of workspace %s: %w", name, err)
		}
		out.Set(name, board)
	}
	return out, nil
}
