// Package zenhub reads Zenhub workspaces and boards.
package zenhub

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// PublicAPIRoot is the zenhub.com API.
const PublicAPIRoot = "https://api.zenhub.com"

// Client implements domain.ZenhubAPI for one API root.
type Client struct {
	session *rest.Client
}

// New creates a client authenticated with token.
func New(apiRoot, token string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := rest.New(apiRoot,
		rest.WithLogger(log.With(zap.String("zenhub", apiRoot))),
		rest.WithHeader("Content-Type", "application/json"),
		rest.WithHeader("X-Authentication-Token", token),
	)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

// Factory builds a domain.ZenhubFactory that reads the token from the
// section CredentialSection names for the API root.
func Factory(creds domain.Credentials, log *zap.Logger) domain.ZenhubFactory {
	return func(apiRoot string) (domain.ZenhubAPI, error) {
		section := CredentialSection(apiRoot)
		token, ok := creds.Get(section, "token")
		if !ok {
			return nil, fmt.Errorf("%s token: %w", section, domain.ErrMissingCredentials)
		}
		return New(apiRoot, token, log)
	}
}

// CredentialSection returns the credentials section holding the token for
// apiRoot.
func CredentialSection(apiRoot string) string {
	if apiRoot == PublicAPIRoot {
		return "zenhub"
	}
	return "zenhub_enterprise"
}

// Workspaces lists the workspaces that contain the repository.
func (c *Client) Workspaces(ctx context.Context, repoID int64) ([]domain.JSONObject, error) {
	out := []domain.JSONObject{}
	if err := c.session.GetJSON(ctx, fmt.Sprintf("/p2/repositories/%d/workspaces", repoID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Board returns the repository board of a workspace.
func (c *Client) Board(ctx context.Context, workspaceID string, repoID int64) (domain.JSONObject, error) {
	var out domain.JSONObject
	p := fmt.Sprintf("/p2/workspaces/%s/repositories/%d/board", url.PathEscape(workspaceID), repoID)
	if err := c.session.GetJSON(ctx, p, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.ZenhubAPI = (*Client)(nil)
