package checks

import (
	"context"
	"fmt"
	"slices"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

func permissionsEvidence(run *application.Run, name string) (*domain.Evidence, error) {
	return run.Evidence(fetchers.RawPath("permissions", name))
}

// OrgCollaborators reports users added directly to org repositories. Only
// orgs that fetch direct collaborators are checked.
type OrgCollaborators struct{ about }

func (c *OrgCollaborators) Tests() []application.Test {
	return []application.Test{{Name: "OrgDirectCollaborators", Run: c.direct}}
}

func (c *OrgCollaborators) direct(_ context.Context, run *application.Run, r *domain.Results) error {
	for _, org := range fetchers.Orgs(run.Config) {
		if !slices.Contains(org.CollaboratorTypes, "direct") {
			continue
		}
		ev, err := permissionsEvidence(run, evidence.CollaboratorsName(org.Service, "direct", org.URL))
		if err != nil {
			return err
		}
		repos, err := evidence.NewOrgCollaborators(ev).Collaborators()
		if err != nil {
			return err
		}
		check.DirectCollaborators(r, org.Name, repos, org.Exceptions)
	}
	return nil
}

// OrgPermissions reports who can reach org repositories: collaborators
// (marked as members or outside collaborators), forks and teams.
type OrgPermissions struct{ about }

func (c *OrgPermissions) Tests() []application.Test {
	return []application.Test{{Name: "RepoPermissions", Run: c.permissions}}
}

func (c *OrgPermissions) permissions(_ context.Context, run *application.Run, r *domain.Results) error {
	for _, org := range fetchers.Orgs(run.Config) {
		if err := c.org(run, r, org); err != nil {
			return fmt.Errorf("org %s: %w", org.URL, err)
		}
	}
	return nil
}

func (c *OrgPermissions) org(run *application.Run, r *domain.Results, org fetchers.Org) error {
	direct, err := permissionsEvidence(run, evidence.CollaboratorsName(org.Service, "direct", org.URL))
	if err != nil {
		return err
	}
	outside, err := permissionsEvidence(run, evidence.CollaboratorsName(org.Service, "outside", org.URL))
	if err != nil {
		return err
	}
	forksEv, err := permissionsEvidence(run, evidence.ForksName(org.Service, org.URL))
	if err != nil {
		return err
	}
	teamsEv, err := permissionsEvidence(run, evidence.TeamsName(org.Service, org.URL))
	if err != nil {
		return err
	}

	collabs, err := evidence.NewOrgCollaborators(direct).Collaborators()
	if err != nil {
		return err
	}
	outsiders, err := evidence.NewOrgCollaborators(outside).AsMap()
	if err != nil {
		return err
	}
	forks, err := evidence.NewOrgForks(forksEv).Forks()
	if err != nil {
		return err
	}
	teams, err := evidence.NewOrgTeams(teamsEv).Teams()
	if err != nil {
		return err
	}
	check.RepoPermissions(r, org.URL, check.MarkMembers(collabs, outsiders), forks, teams)
	return nil
}
