package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// repoListing is a JSON object of repository name to a list of provider
// objects, kept in document order.
type repoListing struct {
	repos []string
	items map[string][]domain.JSONObject
}

func decodeRepoListing(name string, content []byte) (repoListing, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return repoListing{}, fmt.Errorf("parsing %s: %w", name, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return repoListing{}, fmt.Errorf("parsing %s: expected a JSON object", name)
	}
	out := repoListing{items: map[string][]domain.JSONObject{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return repoListing{}, fmt.Errorf("parsing %s: %w", name, err)
		}
		repo, _ := keyTok.(string)
		var list []domain.JSONObject
		if err := dec.Decode(&list); err != nil {
			return repoListing{}, fmt.Errorf("parsing %s: %w", name, err)
		}
		if _, dup := out.items[repo]; !dup {
			out.repos = append(out.repos, repo)
		}
		out.items[repo] = list
	}
	if _, err := dec.Token(); err != nil {
		return repoListing{}, fmt.Errorf("parsing %s: %w", name, err)
	}
	return out, nil
}

// RepoCollaborators is the collaborator list of one repository.
type RepoCollaborators struct {
	Repo    string              `json:"repo"`
	Collabs []domain.JSONObject `json:"collabs"`
}

// RepoForks is the fork URL list of one repository.
type RepoForks struct {
	Repo  string   `json:"repo"`
	Forks []string `json:"forks"`
}

// RepoTeams is the team name list of one repository.
type RepoTeams struct {
	Repo  string   `json:"repo"`
	Teams []string `json:"teams"`
}

type orgView struct {
	view
	listing lazy[repoListing]
}

func (o *orgView) decoded() (repoListing, error) {
	return o.listing.get(func() (repoListing, error) {
		return decodeRepoListing(o.ev.Name, o.ev.Content)
	})
}

// Repos returns the repository names in document order.
func (o *orgView) Repos() ([]string, error) {
	if o.empty() {
		return nil, nil
	}
	l, err := o.decoded()
	return l.repos, err
}

// AsMap returns the raw listing keyed by repository.
func (o *orgView) AsMap() (map[string][]domain.JSONObject, error) {
	if o.empty() {
		return nil, nil
	}
	l, err := o.decoded()
	return l.items, err
}

// OrgCollaborators wraps direct or outside collaborator evidence.
type OrgCollaborators struct {
	orgView
	collabs lazy[[]RepoCollaborators]
}

// NewOrgCollaborators wraps ev.
func NewOrgCollaborators(ev *domain.Evidence) *OrgCollaborators {
	return &OrgCollaborators{orgView: orgView{view: view{ev: ev}}}
}

// Collaborators returns the collaborators per repository, skipping
// repositories without any.
func (c *OrgCollaborators) Collaborators() ([]RepoCollaborators, error) {
	if c.empty() {
		return nil, nil
	}
	return c.collabs.get(func() ([]RepoCollaborators, error) {
		return dispatch(c.service(), table[[]RepoCollaborators]{
			GitHub: func() ([]RepoCollaborators, error) {
				l, err := c.decoded()
				if err != nil {
					return nil, err
				}
				var out []RepoCollaborators
				for _, repo := range l.repos {
					if len(l.items[repo]) == 0 {
						continue
					}
					out = append(out, RepoCollaborators{Repo: repo, Collabs: l.items[repo]})
				}
				return out, nil
			},
		})
	})
}

// OrgForks wraps repository fork evidence.
type OrgForks struct {
	orgView
	forks lazy[[]RepoForks]
}

// NewOrgForks wraps ev.
func NewOrgForks(ev *domain.Evidence) *OrgForks {
	return &OrgForks{orgView: orgView{view: view{ev: ev}}}
}

// Forks returns the fork html_url values per repository, skipping
// repositories without forks.
func (f *OrgForks) Forks() ([]RepoForks, error) {
	if f.empty() {
		return nil, nil
	}
	return f.forks.get(func() ([]RepoForks, error) {
		return dispatch(f.service(), table[[]RepoForks]{
			GitHub: func() ([]RepoForks, error) {
				l, err := f.decoded()
				if err != nil {
					return nil, err
				}
				var out []RepoForks
				for _, repo := range l.repos {
					urls := stringField(l.items[repo], "html_url")
					if len(urls) == 0 {
						continue
					}
					out = append(out, RepoForks{Repo: repo, Forks: urls})
				}
				return out, nil
			},
		})
	})
}

// OrgTeams wraps repository team evidence.
type OrgTeams struct {
	orgView
	teams lazy[[]RepoTeams]
}

// NewOrgTeams wraps ev.
func NewOrgTeams(ev *domain.Evidence) *OrgTeams {
	return &OrgTeams{orgView: orgView{view: view{ev: ev}}}
}

// Teams returns the team names per repository, skipping repositories
// without teams.
func (t *OrgTeams) Teams() ([]RepoTeams, error) {
	if t.empty() {
		return nil, nil
	}
	return t.teams.get(func() ([]RepoTeams, error) {
		return dispatch(t.service(), table[[]RepoTeams]{
			GitHub: func() ([]RepoTeams, error) {
				l, err := t.decoded()
				if err != nil {
					return nil, err
				}
				var out []RepoTeams
				for _, repo := range l.repos {
					names := stringField(l.items[repo], "name")
					if len(names) == 0 {
						continue
					}
					out = append(out, RepoTeams{Repo: repo, Teams: names})
				}
				return out, nil
			},
		})
	})
}

func stringField(objs []domain.JSONObject, field string) []string {
	var out []string
	for _, o := range objs {
		if s, ok := o[field].(string); ok {
			out = append(out, s)
		}
	}
	return out
}
