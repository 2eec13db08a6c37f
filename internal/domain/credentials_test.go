package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

type staticCreds map[string]string

func (s staticCreds) Get(section, key string) (string, bool) {
	v, ok := s[section+"."+key]
	return v, ok
}

func TestAccountAzureCredentials(t *testing.T) {
	creds := staticCreds{
		"azure_cloud.prod_clientid":       "cid",
		"azure_cloud.prod_clientsecret":   "secret",
		"azure_cloud.prod_tenantid":       "tenant",
		"azure_cloud.prod_subscriptionid": "sub",
		"azure_cloud.dev_clientid":        "cid",
	}
	got, err := domain.AccountAzureCredentials(creds, "prod")
	require.NoError(t, err)
	assert.Equal(t, domain.AzureCredentials{ClientID: "cid", ClientSecret: "secret", TenantID: "tenant", SubscriptionID: "sub"}, got)

	_, err = domain.AccountAzureCredentials(creds, "dev")
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.ErrorContains(t, err, "dev_clientsecret")
}

func TestAccountIBMCloudAPIKey(t *testing.T) {
	creds := staticCreds{"ibm_cloud.prod_api_key": "k", "ibm_cloud.empty_api_key": ""}
	key, err := domain.AccountIBMCloudAPIKey(creds, "prod")
	require.NoError(t, err)
	assert.Equal(t, "k", key)

	for _, acct := range []string{"dev", "empty"} {
		_, err = domain.AccountIBMCloudAPIKey(creds, acct)
		assert.ErrorIs(t, err, domain.ErrMissingCredentials, acct)
	}
}
