// Package pypi fetches package release feeds from PyPI.
package pypi

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// RSSBaseURL is the root of the per project RSS feeds.
const RSSBaseURL = "https://pypi.org/rss/project"

// Client implements domain.PyPIAPI.
type Client struct {
	session *rest.Client
}

// New creates a client for baseURL, RSSBaseURL when empty.
func New(baseURL string, log *zap.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = RSSBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	s, err := rest.New(baseURL, rest.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

// Releases returns the raw releases RSS document of pkg.
func (c *Client) Releases(ctx context.Context, pkg string) ([]byte, error) {
	resp, err := c.session.Do(ctx, rest.Request{Path: url.PathEscape(pkg) + "/releases.xml"})
	if err != nil {
		return nil, fmt.Errorf("releases of %s: %w", pkg, err)
	}
	return resp.Body, nil
}

var _ domain.PyPIAPI = (*Client)(nil)
