package fetchers

import (
	"context"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// BucketMetadataPath holds the bucket HEAD responses per account.
const BucketMetadataPath = "raw/cos/cos_bucket_metadata.json"

// BucketMetadata stores the HEAD response headers of every bucket of the
// configured service instances, per account and bucket URL.
type BucketMetadata struct {
	ibm      domain.IBMCloudAPI
	cos      domain.COSAPI
	endpoint func(region string) string
}

func (*BucketMetadata) Name() string        { return "cos.bucket_metadata" }
func (*BucketMetadata) Description() string { return "Cloud Object Storage bucket metadata" }

func (f *BucketMetadata) Fetch(ctx context.Context, run *application.Run) error {
	ev := domain.NewRawEvidence("cos", "cos_bucket_metadata.json", domain.Day, f.Description())
	return run.Store(ev, func(ev *domain.Evidence) error {
		if f.ibm == nil || f.cos == nil || f.endpoint == nil {
			return notConfigured("cloud object storage")
		}
		out := newObject()
		var order []string
		regions := map[string][]string{}
		accounts := run.Config.StringMap("org.cos.accounts")
		for _, account := range run.Config.Keys("org.cos.accounts") {
			apiKey, err := domain.AccountIBMCloudAPIKey(run.Creds, account)
			if err != nil {
				return err
			}
			tokens, err := f.ibm.Tokens(ctx, apiKey)
			if err != nil {
				return fmt.Errorf("iam tokens for %s: %w", account, err)
			}
			heads := newObject()
			perRegion := cast.ToStringMap(accounts[account])
			for _, region := range run.Config.NestedKeys("org.cos.accounts", account) {
				endpoint := f.endpoint(region)
				for _, instance := range cast.ToStringSlice(perRegion[region]) {
					buckets, err := f.buckets(ctx, run, endpoint, tokens.AccessToken, instance)
					if err != nil {
						return fmt.Errorf("buckets of %s: %w", instance, err)
					}
					for _, bucket := range buckets {
						head, found, err := f.cos.HeadBucket(ctx, endpoint, tokens.AccessToken, bucket)
						if err != nil {
							return fmt.Errorf("bucket %s in %s: %w", bucket, region, err)
						}
						if !found {
							continue
						}
						if _, seen := regions[bucket]; !seen {
							order = append(order, bucket)
						}
						regions[bucket] = append(regions[bucket], region)
						heads.Set(head.URL, head.Headers)
					}
				}
			}
			out.Set(account, heads)
		}
		for _, bucket := range order {
			if rs := regions[bucket]; len(rs) > 1 {
				run.Log.Warn("bucket found in multiple regions", zap.String("bucket", bucket), zap.Strings("regions", rs))
			} else {
				run.Log.Debug("bucket found", zap.String("bucket", bucket), zap.String("region", rs[0]))
			}
		}
		return ev.SetJSON(out)
	})
}

// buckets returns the configured bucket names of instance, or lists them.
func (f *BucketMetadata) buckets(ctx context.Context, run *application.Run, endpoint, token, instance string) ([]string, error) {
	if names, ok := run.Config.StringMap("org.cos.buckets")[instance]; ok {
		return cast.ToStringSlice(names), nil
	}
	return f.cos.Buckets(ctx, endpoint, token, instance)
}
