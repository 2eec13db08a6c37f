// Package rest is the JSON over HTTP session shared by the provider
// adapters. One Client talks to one base URL.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIError is a non-2xx response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, strings.TrimSpace(body))
}

// IsNotFound reports whether err is a 404 APIError.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client sends requests relative to a base URL with a fixed set of headers.
type Client struct {
	base    *url.URL
	http    *http.Client
	headers http.Header
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, e.g. with an oauth2 one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 60 * time.Second},
		headers: http.Header{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// URL resolves p against the base URL. Absolute URLs are returned as is.
func (c *Client) URL(p string, query url.Values) string {
	var s string
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		s = p
	} else {
		s = c.base.String() + "/" + strings.TrimLeft(p, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(s, "?") {
			sep = "&"
		}
		s += sep + query.Encode()
	}
	return s
}

// Request is one call made through Do.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.Reader
	// Accept lists extra success codes besides 2xx.
	Accept []int
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Do sends r and reads the whole body. Non-2xx responses not listed in
// r.Accept are returned as *APIError.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.URL(r.Path, r.Query)
	req, err := http.NewRequestWithContext(ctx, method, target, r.Body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, redactQuery(target), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", method, redactQuery(target), err)
	}
	c.log.Debug("http request",
		zap.String("method", method),
		zap.String("url", redactQuery(target)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, URL: target}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return out, nil
	}
	for _, code := range r.Accept {
		if code == resp.StatusCode {
			return out, nil
		}
	}
	return out, &APIError{
		Operation:  method + " " + redactQuery(target),
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// GetJSON decodes the JSON body of a GET into out.
func (c *Client) GetJSON(ctx context.Context, p string, query url.Values, out any) error {
	resp, err := c.Do(ctx, Request{Path: p, Query: query, Header: http.Header{"Accept": {"application/json"}}})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostForm posts url-encoded values and decodes the JSON response into out.
func (c *Client) PostForm(ctx context.Context, p string, form url.Values, header http.Header, out any) error {
	h := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}, "Accept": {"application/json"}}
	for k, vs := range header {
		h[k] = vs
	}
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   p,
		Header: h,
		Body:   bytes.NewBufferString(form.Encode()),
	})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *Response, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", redactQuery(resp.URL), err)
	}
	return nil
}

// redactQuery drops the query string, which may carry keys or tokens.
func redactQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}
