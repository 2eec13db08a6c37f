package check

import (
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// BucketMetadata is the content of the COS bucket metadata evidence:
// account, then bucket URL, then the HEAD response headers.
type BucketMetadata map[string]map[string]map[string]string

const (
	headerKPEnabled = "ibm-sse-kp-enabled"
	headerRootKey   = "ibm-sse-kp-customer-root-key-crn"
)

// BucketEncryption fails buckets that are not encrypted with a customer
// managed key. Excluded buckets are warned instead.
func BucketEncryption(r *domain.Results, md BucketMetadata, excluded []string) {
	skip := make(map[string]bool, len(excluded))
	for _, b := range excluded {
		skip[b] = true
	}
	for _, account := range domain.OrderedKeys(md, nil) {
		buckets := md[account]
		for _, bucket := range domain.OrderedKeys(buckets, nil) {
			var msg string
			enabled, ok := buckets[bucket][headerKPEnabled]
			switch {
			case !ok:
				msg = "no encryption data for buckets"
			case enabled != "true":
				msg = "buckets not encrypted with customer key (ibm-sse-kp-enabled is false)"
			default:
				continue
			}
			if skip[bucket] {
				r.AddWarning(fmt.Sprintf("Account: `%s`, %s but is excluded", account, msg), bucket)
				continue
			}
			r.AddFailure(fmt.Sprintf("Account: `%s`, %s", account, msg), bucket)
		}
	}
}

// ExpiredKeys fails buckets encrypted with a key listed as expired and warns
// on listed keys that no bucket uses.
func ExpiredKeys(r *domain.Results, md BucketMetadata, expired []string) {
	listed := make(map[string]bool, len(expired))
	for _, k := range expired {
		listed[k] = true
	}
	found := map[string]bool{}
	for _, account := range domain.OrderedKeys(md, nil) {
		buckets := md[account]
		for _, bucket := range domain.OrderedKeys(buckets, nil) {
			headers := buckets[bucket]
			if headers[headerKPEnabled] != "true" {
				continue
			}
			key := headers[headerRootKey]
			if !listed[key] {
				continue
			}
			r.AddFailure(fmt.Sprintf("Account: `%s`, buckets using an expired customer key `%s`", account, key), bucket)
			found[key] = true
		}
	}
	for _, key := range expired {
		if !found[key] {
			r.AddWarning("configured expired key not found", key)
		}
	}
}
