package domain

import "fmt"

// AccountAzureCredentials reads the service principal of account from the
// azure_cloud section (<account>_clientid, _clientsecret, _tenantid,
// _subscriptionid).
func AccountAzureCredentials(creds Credentials, account string) (AzureCredentials, error) {
	var out AzureCredentials
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"clientid", &out.ClientID},
		{"clientsecret", &out.ClientSecret},
		{"tenantid", &out.TenantID},
		{"subscriptionid", &out.SubscriptionID},
	} {
		v, ok := creds.Get("azure_cloud", account+"_"+f.key)
		if !ok {
			return AzureCredentials{}, fmt.Errorf("azure_cloud %s_%s: %w", account, f.key, ErrMissingCredentials)
		}
		*f.dst = v
	}
	return out, nil
}

// AccountIBMCloudAPIKey reads <account>_api_key from the ibm_cloud section.
func AccountIBMCloudAPIKey(creds Credentials, account string) (string, error) {
	key, ok := creds.Get("ibm_cloud", account+"_api_key")
	if !ok || key == "" {
		return "", fmt.Errorf("ibm_cloud %s_api_key: %w", account, ErrMissingCredentials)
	}
	return key, nil
}
