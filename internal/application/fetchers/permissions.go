package fetchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

const orgsKey = "org.permissions.org_integrity.orgs"

// DefaultCollaboratorTypes is fetched when an org lists no
// collaborator_types.
var DefaultCollaboratorTypes = []string{"all"}

// Org is one entry of org.permissions.org_integrity.orgs.
type Org struct {
	URL               string
	Host              string
	Name              string
	Service           evidence.Service
	Repos             []string
	CollaboratorTypes []string
	Exceptions        []check.CollaboratorException
}

// Orgs reads the configured organizations.
func Orgs(cfg domain.Config) []Org {
	var out []Org
	for _, m := range cfg.Maps(orgsKey) {
		url := cast.ToString(m["url"])
		host, name := evidence.SplitOrgURL(url)
		types := cast.ToStringSlice(m["collaborator_types"])
		if len(types) == 0 {
			types = DefaultCollaboratorTypes
		}
		org := Org{
			URL:               url,
			Host:              host,
			Name:              name,
			Service:           evidence.ServiceFromHost(host),
			Repos:             cast.ToStringSlice(m["repos"]),
			CollaboratorTypes: types,
		}
		for _, e := range cast.ToSlice(m["exceptions"]) {
			em, err := cast.ToStringMapE(e)
			if err != nil {
				continue
			}
			exc := check.CollaboratorException{User: cast.ToString(em["user"])}
			if repos, ok := em["repos"]; ok {
				exc.Repos = cast.ToStringSlice(repos)
			}
			org.Exceptions = append(org.Exceptions, exc)
		}
		out = append(out, org)
	}
	return out
}

// orgRepos lists the org's repositories when none are configured. The
// listing is cached on the fetcher for the rest of the run set.
type orgRepos struct {
	pool   *githubPool
	listed map[string][]string
}

func (o *orgRepos) repos(ctx context.Context, org Org) ([]string, domain.GitHubAPI, error) {
	if org.Service != evidence.GitHub {
		return nil, nil, &evidence.UnsupportedServiceError{Service: org.Service}
	}
	gh, err := o.pool.client(org.Host)
	if err != nil {
		return nil, nil, err
	}
	if len(org.Repos) > 0 {
		return org.Repos, gh, nil
	}
	if repos, ok := o.listed[org.URL]; ok {
		return repos, gh, nil
	}
	repos, err := gh.OrgRepoNames(ctx, org.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s repositories: %w", org.URL, err)
	}
	if o.listed == nil {
		o.listed = map[string][]string{}
	}
	o.listed[org.URL] = repos
	return repos, gh, nil
}

// perRepo builds {repo: list} by calling list for every repository of org.
func (o *orgRepos) perRepo(ctx context.Context, org Org, list func(gh domain.GitHubAPI, repo string) ([]domain.JSONObject, error)) (*object, error) {
	repos, gh, err := o.repos(ctx, org)
	if err != nil {
		return nil, err
	}
	out := newObject()
	for _, repo := range repos {
		items, err := list(gh, repo)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", org.Name, repo, err)
		}
		out.Set(repo, orEmpty(items))
	}
	return out, nil
}

// OrgCollaborators stores the collaborators of every org repository, one
// evidence file per collaborator affiliation.
type OrgCollaborators struct {
	orgRepos
}

func (*OrgCollaborators) Name() string        { return "github.org_collaborators" }
func (*OrgCollaborators) Description() string { return "Collaborators of the org repositories" }

func (f *OrgCollaborators) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, org := range Orgs(run.Config) {
		for _, aff := range org.CollaboratorTypes {
			desc := fmt.Sprintf("%s collaborators of the %s %s org", titleCase(aff), org.Name, strings.ToUpper(string(org.Service)))
			ev := domain.NewRawEvidence("permissions", evidence.CollaboratorsName(org.Service, aff, org.URL), domain.Day, desc)
			errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
				collabs, err := f.perRepo(ctx, org, func(gh domain.GitHubAPI, repo string) ([]domain.JSONObject, error) {
					return gh.Collaborators(ctx, org.Name, repo, aff)
				})
				if err != nil {
					return err
				}
				return ev.SetJSON(collabs)
			}))
		}
	}
	return errors.Join(errs...)
}

// OrgPermissions stores the forks and the teams of every org repository.
type OrgPermissions struct {
	orgRepos
}

func (*OrgPermissions) Name() string        { return "github.org_permissions" }
func (*OrgPermissions) Description() string { return "Forks and team access of the org repositories" }

func (f *OrgPermissions) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, org := range Orgs(run.Config) {
		svc := strings.ToUpper(string(org.Service))
		forks := domain.NewRawEvidence("permissions", evidence.ForksName(org.Service, org.URL), domain.Day,
			fmt.Sprintf("Forks of repos in the %s %s org", org.Name, svc))
		errs = append(errs, run.Store(forks, func(ev *domain.Evidence) error {
			list, err := f.perRepo(ctx, org, func(gh domain.GitHubAPI, repo string) ([]domain.JSONObject, error) {
				return gh.Forks(ctx, org.Name, repo)
			})
			if err != nil {
				return err
			}
			return ev.SetJSON(list)
		}))

		teams := domain.NewRawEvidence("permissions", evidence.TeamsName(org.Service, org.URL), domain.Day,
			fmt.Sprintf("Repo access for %s teams in the %s %s org", svc, org.Name, svc))
		errs = append(errs, run.Store(teams, func(ev *domain.Evidence) error {
			list, err := f.perRepo(ctx, org, func(gh domain.GitHubAPI, repo string) ([]domain.JSONObject, error) {
				return gh.Teams(ctx, org.Name, repo)
			})
			if err != nil {
				return err
			}
			return ev.SetJSON(list)
		}))
	}
	return errors.Join(errs...)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
