package evidence_test

import (
	"testing"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collaboratorsJSON = `{
  "zeta": [{"login": "alice"}, {"login": "bob"}],
  "empty": [],
  "alpha": [{"login": "carol"}]
}`

func TestOrgCollaborators_KeepsDocumentOrderAndSkipsEmpty(t *testing.T) {
	oc := evidence.NewOrgCollaborators(rawEvidence("gh_direct_collaborators_abc.json", []byte(collaboratorsJSON)))

	collabs, err := oc.Collaborators()
	require.NoError(t, err)
	require.Len(t, collabs, 2)
	assert.Equal(t, "zeta", collabs[0].Repo)
	assert.Equal(t, "alice", collabs[0].Collabs[0]["login"])
	assert.Equal(t, "alpha", collabs[1].Repo)

	repos, err := oc.Repos()
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "empty", "alpha"}, repos)

	raw, err := oc.AsMap()
	require.NoError(t, err)
	assert.Empty(t, raw["empty"])
}

func TestOrgCollaborators_Unsupported(t *testing.T) {
	oc := evidence.NewOrgCollaborators(rawEvidence("gl_direct_collaborators_abc.json", []byte(collaboratorsJSON)))
	_, err := oc.Collaborators()
	assert.EqualError(t, err, "Support for Gitlab coming soon...")
}

func TestOrgCollaborators_Malformed(t *testing.T) {
	oc := evidence.NewOrgCollaborators(rawEvidence("gh_x.json", []byte(`["not", "an", "object"]`)))
	_, err := oc.Collaborators()
	assert.ErrorContains(t, err, "expected a JSON object")
}

func TestOrgForks(t *testing.T) {
	of := evidence.NewOrgForks(rawEvidence("gh_forks_abc.json", []byte(`{
  "repo-a": [{"html_url": "https://github.com/u/repo-a"}],
  "repo-b": []
}`)))
	forks, err := of.Forks()
	require.NoError(t, err)
	assert.Equal(t, []evidence.RepoForks{{Repo: "repo-a", Forks: []string{"https://github.com/u/repo-a"}}}, forks)
}

func TestOrgTeams(t *testing.T) {
	ot := evidence.NewOrgTeams(rawEvidence("gh_teams_abc.json", []byte(`{
  "repo-a": [{"name": "admins"}, {"name": "devs"}]
}`)))
	teams, err := ot.Teams()
	require.NoError(t, err)
	assert.Equal(t, []evidence.RepoTeams{{Repo: "repo-a", Teams: []string{"admins", "devs"}}}, teams)

	none, err := evidence.NewOrgTeams(rawEvidence("gh_teams_abc.json", nil)).Teams()
	require.NoError(t, err)
	assert.Nil(t, none)
}
