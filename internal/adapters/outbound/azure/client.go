// Package azure lists Azure management API resources with a service
// principal token.
package azure

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const (
	// ManagementURL is the Azure Resource Manager endpoint.
	ManagementURL = "https://management.azure.com"
	// LoginURL is the Microsoft identity platform endpoint.
	LoginURL = "https://login.microsoftonline.com"
	scope    = "https://management.azure.com/.default"
)

// Client implements domain.AzureAPI.
type Client struct {
	managementURL string
	loginURL      string
	log           *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the management and login endpoints.
func WithEndpoints(management, login string) Option {
	return func(c *Client) {
		c.managementURL = strings.TrimRight(management, "/")
		c.loginURL = strings.TrimRight(login, "/")
	}
}

// New creates a client.
func New(log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{managementURL: ManagementURL, loginURL: LoginURL, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

type listPage struct {
	Value    []domain.JSONObject `json:"value"`
	NextLink string              `json:"nextLink"`
}

// ListValues GETs apiPath and every nextLink page after it, returning the
// concatenated value arrays.
func (c *Client) ListValues(ctx context.Context, creds domain.AzureCredentials, apiPath string) ([]domain.JSONObject, error) {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginURL, creds.TenantID),
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	session, err := rest.New(c.managementURL,
		rest.WithHTTPClient(cc.Client(ctx)),
		rest.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}

	values := []domain.JSONObject{}
	next := apiPath
	for next != "" {
		var page listPage
		if err := session.GetJSON(ctx, next, nil, &page); err != nil {
			return nil, fmt.Errorf("listing %s: %w", strings.SplitN(apiPath, "?", 2)[0], err)
		}
		values = append(values, page.Value...)
		next = page.NextLink
	}
	return values, nil
}

var _ domain.AzureAPI = (*Client)(nil)
