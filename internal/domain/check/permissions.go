package check

import (
	"github.com/google/go-cmp/cmp"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// CollaboratorException allows a user as a direct collaborator, on every
// repository or only on Repos.
type CollaboratorException struct {
	User  string   `json:"user" yaml:"user"`
	Repos []string `json:"repos,omitempty" yaml:"repos,omitempty"`
}

func (e CollaboratorException) covers(repo string) bool {
	if e.Repos == nil {
		return true
	}
	for _, r := range e.Repos {
		if r == repo {
			return true
		}
	}
	return false
}

// CollaboratorItem is the finding item for one repository.
type CollaboratorItem struct {
	Org   string   `json:"org"`
	Repo  string   `json:"repo"`
	Users []string `json:"users"`
}

// DirectCollaborators fails users directly added to org repositories and
// warns on those covered by an exception.
func DirectCollaborators(r *domain.Results, org string, repos []evidence.RepoCollaborators, exceptions []CollaboratorException) {
	for _, repo := range repos {
		allowed := map[string]bool{}
		for _, e := range exceptions {
			if e.covers(repo.Repo) {
				allowed[e.User] = true
			}
		}
		var failed, warned []string
		seen := map[string]bool{}
		for _, c := range repo.Collabs {
			login, _ := c["login"].(string)
			if seen[login] {
				continue
			}
			seen[login] = true
			if allowed[login] {
				warned = append(warned, login)
			} else {
				failed = append(failed, login)
			}
		}
		if len(failed) > 0 {
			r.AddFailure("unexpected-org-collaborators", CollaboratorItem{Org: org, Repo: repo.Repo, Users: failed})
		}
		if len(warned) > 0 {
			r.AddWarning("allowed-org-collaborators", CollaboratorItem{Org: org, Repo: repo.Repo, Users: warned})
		}
	}
}

// RepoMembers lists the collaborators of a repository, each marked with
// whether it is an org member (not an outside collaborator).
type RepoMembers struct {
	Repo    string              `json:"repo"`
	Collabs []domain.JSONObject `json:"collabs"`
}

// MarkMembers annotates direct collaborators with member=true unless the
// same collaborator object is listed as an outside collaborator.
func MarkMembers(direct []evidence.RepoCollaborators, outside map[string][]domain.JSONObject) []RepoMembers {
	var out []RepoMembers
	for _, repo := range direct {
		collabs := make([]domain.JSONObject, 0, len(repo.Collabs))
		for _, c := range repo.Collabs {
			marked := make(domain.JSONObject, len(c)+1)
			for k, v := range c {
				marked[k] = v
			}
			marked["member"] = !containsObject(outside[repo.Repo], c)
			collabs = append(collabs, marked)
		}
		out = append(out, RepoMembers{Repo: repo.Repo, Collabs: collabs})
	}
	return out
}

func containsObject(list []domain.JSONObject, obj domain.JSONObject) bool {
	for _, o := range list {
		if cmp.Equal(o, obj) {
			return true
		}
	}
	return false
}

// RepoPermissions reports collaborators as failures, forks as warnings and
// teams as successes, all under the org URL.
func RepoPermissions(r *domain.Results, orgURL string, members []RepoMembers, forks []evidence.RepoForks, teams []evidence.RepoTeams) {
	for _, m := range members {
		r.AddFailure(orgURL, m)
	}
	for _, f := range forks {
		r.AddWarning(orgURL, f)
	}
	for _, t := range teams {
		r.AddSuccess(orgURL, t)
	}
}
