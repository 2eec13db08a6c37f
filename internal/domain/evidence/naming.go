package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// RepoSlug lower-cases a repository path and replaces "/" and "-" with "_".
func RepoSlug(repo string) string {
	return strings.NewReplacer("/", "_", "-", "_").Replace(strings.ToLower(repo))
}

// BranchSlug lower-cases a branch and replaces "-" with "_".
func BranchSlug(branch string) string {
	return strings.ReplaceAll(strings.ToLower(branch), "-", "_")
}

// FilepathSlug builds the prefix for file path commit evidence. The
// replacement order is part of the naming contract.
func FilepathSlug(repo, branch, filepath string) string {
	slug := strings.ToLower(fmt.Sprintf("%s_%s_%s", repo, branch, filepath))
	for _, symbol := range []string{" ", "/", "-", "."} {
		slug = strings.ReplaceAll(slug, symbol, "_")
	}
	return slug
}

// URLHash returns the first 10 hex characters of the sha256 of the
// concatenated parts.
func URLHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:10]
}

// RepoRef is a parsed repository URL.
type RepoRef struct {
	URL     string
	BaseURL string
	Host    string
	Repo    string
	Service Service
}

// ParseRepoURL splits https://host/org/repo into its parts.
func ParseRepoURL(raw string) (RepoRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, fmt.Errorf("parsing repository url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return RepoRef{}, fmt.Errorf("repository url %q has no scheme or host", raw)
	}
	host := strings.ToLower(u.Hostname())
	return RepoRef{
		URL:     raw,
		BaseURL: u.Scheme + "://" + host,
		Host:    host,
		Repo:    strings.Trim(u.Path, "/"),
		Service: ServiceFromHost(host),
	}, nil
}

// SplitOrgURL splits https://github.com/my-org into host URL and org name.
func SplitOrgURL(orgURL string) (host, org string) {
	i := strings.LastIndex(orgURL, "/")
	if i < 0 {
		return "", orgURL
	}
	return orgURL[:i], orgURL[i+1:]
}

// RecentCommitsName names the recent commits evidence of a branch.
func RecentCommitsName(svc Service, repo, branch string) string {
	return fmt.Sprintf("%s_%s_%s_recent_commits.json", svc, RepoSlug(repo), BranchSlug(branch))
}

// BranchProtectionName names the branch protection evidence of a branch.
func BranchProtectionName(svc Service, repo, branch string) string {
	return fmt.Sprintf("%s_%s_%s_branch_protection.json", svc, RepoSlug(repo), BranchSlug(branch))
}

// RepoMetadataName names the repository metadata evidence.
func RepoMetadataName(svc Service, repo string) string {
	return fmt.Sprintf("%s_%s_repo_metadata.json", svc, RepoSlug(repo))
}

// FilepathCommitsName names the recent commits evidence of a file path.
func FilepathCommitsName(svc Service, repo, branch, filepath string) string {
	return fmt.Sprintf("%s_%s_recent_commits.json", svc, FilepathSlug(repo, branch, filepath))
}

// CollaboratorsName names the collaborators evidence of an org for one
// affiliation (direct, outside, all).
func CollaboratorsName(svc Service, affiliation, orgURL string) string {
	return fmt.Sprintf("%s_%s_collaborators_%s.json", svc, affiliation, URLHash(orgURL))
}

// ForksName names the forks evidence of an org.
func ForksName(svc Service, orgURL string) string {
	return fmt.Sprintf("%s_forks_%s.json", svc, URLHash(orgURL))
}

// TeamsName names the teams evidence of an org.
func TeamsName(svc Service, orgURL string) string {
	return fmt.Sprintf("%s_teams_%s.json", svc, URLHash(orgURL))
}

// IssuesName names the issues evidence of a repository.
func IssuesName(host, repo string) string {
	return fmt.Sprintf("gh_repo_%s_issues.json", URLHash(host, repo))
}

// ZenhubWorkspacesName names the Zenhub workspaces evidence of a repository.
func ZenhubWorkspacesName(githubHost, repo string) string {
	return fmt.Sprintf("zh_repo_%s_workspaces.json", URLHash(githubHost, repo))
}

// PackageReleasesName names the PyPI releases feed evidence of a package.
func PackageReleasesName(pkg string) string {
	return strings.ReplaceAll(strings.ToLower(pkg), "-", "_") + "_releases.xml"
}
