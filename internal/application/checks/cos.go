package checks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
)

func bucketMetadata(run *application.Run) (check.BucketMetadata, error) {
	ev, err := run.Evidence(fetchers.BucketMetadataPath)
	if err != nil {
		return nil, err
	}
	md := check.BucketMetadata{}
	if err := json.Unmarshal(ev.Content, &md); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ev.Path(), err)
	}
	return md, nil
}

// BucketEncryption requires every bucket to be encrypted with a customer
// managed Key Protect key.
type BucketEncryption struct{ about }

func (c *BucketEncryption) Tests() []application.Test {
	return []application.Test{{Name: "BucketCustomerKeyEncryption", Run: c.encryption}}
}

func (c *BucketEncryption) encryption(_ context.Context, run *application.Run, r *domain.Results) error {
	md, err := bucketMetadata(run)
	if err != nil {
		return err
	}
	check.BucketEncryption(r, md, run.Config.StringSlice("org.cos.encryption.exclude", nil))
	return nil
}

// ExpiredKeys reports buckets still encrypted with a key listed as expired.
type ExpiredKeys struct{ about }

func (c *ExpiredKeys) Tests() []application.Test {
	return []application.Test{{Name: "BucketExpiredKey", Run: c.expired}}
}

func (c *ExpiredKeys) expired(_ context.Context, run *application.Run, r *domain.Results) error {
	md, err := bucketMetadata(run)
	if err != nil {
		return err
	}
	check.ExpiredKeys(r, md, run.Config.StringSlice("org.cos.encryption.expired_keys", nil))
	return nil
}
