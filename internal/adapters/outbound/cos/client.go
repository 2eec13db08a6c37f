// Package cos reads IBM Cloud Object Storage bucket metadata over the S3
// compatible API.
package cos

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// EndpointTemplate is the public regional endpoint; %s is the region.
const EndpointTemplate = "https://s3.%s.cloud-object-storage.appdomain.cloud"

// volatileHeaders change on every request and are dropped to keep the
// evidence stable.
var volatileHeaders = []string{"Date", "X-Clv-Request-Id", "X-Amz-Request-Id"}

// Endpoint returns the regional endpoint of template.
func Endpoint(template, region string) string {
	if template == "" {
		template = EndpointTemplate
	}
	return fmt.Sprintf(template, region)
}

// Client implements domain.COSAPI.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a client. A nil httpClient uses the rest package default.
func New(httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{httpClient: httpClient, log: log}
}

func (c *Client) session(endpoint, token string) (*rest.Client, error) {
	opts := []rest.Option{
		rest.WithLogger(c.log),
		rest.WithHeader("Authorization", "Bearer "+token),
	}
	if c.httpClient != nil {
		opts = append(opts, rest.WithHTTPClient(c.httpClient))
	}
	return rest.New(endpoint, opts...)
}

type listAllMyBuckets struct {
	Buckets []struct {
		Name string `xml:"Name"`
	} `xml:"Buckets>Bucket"`
}

// Buckets lists the bucket names owned by a service instance.
func (c *Client) Buckets(ctx context.Context, endpoint, token, instance string) ([]string, error) {
	s, err := c.session(endpoint, token)
	if err != nil {
		return nil, err
	}
	resp, err := s.Do(ctx, rest.Request{
		Path:   "/",
		Header: http.Header{"Ibm-Service-Instance-Id": {instance}},
	})
	if err != nil {
		return nil, err
	}
	var out listAllMyBuckets
	if err := xml.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decoding bucket list: %w", err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// HeadBucket returns the response headers of a HEAD on the bucket, minus
// the per-request ones, keyed in lower case. A 404 means the bucket lives
// in another region.
func (c *Client) HeadBucket(ctx context.Context, endpoint, token, bucket string) (domain.BucketHead, bool, error) {
	s, err := c.session(endpoint, token)
	if err != nil {
		return domain.BucketHead{}, false, err
	}
	resp, err := s.Do(ctx, rest.Request{Method: http.MethodHead, Path: url.PathEscape(bucket)})
	if err != nil {
		if rest.IsNotFound(err) {
			c.log.Debug("bucket not in region", zap.String("bucket", bucket), zap.String("endpoint", endpoint))
			return domain.BucketHead{}, false, nil
		}
		return domain.BucketHead{}, false, err
	}
	for _, h := range volatileHeaders {
		resp.Header.Del(h)
	}
	headers := make(map[string]string, len(resp.Header))
	for k, vs := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return domain.BucketHead{URL: resp.URL, Headers: headers}, true, nil
}

var _ domain.COSAPI = (*Client)(nil)
