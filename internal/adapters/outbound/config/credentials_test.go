package config_test

import (
	"path/filepath"
	"testing"

	appconfig "github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_INI(t *testing.T) {
	p := writeConfig(t, "creds.ini", `
[github]
token = gh-secret

[ibm_cloud]
myacct_api_key = ibm-secret
`)
	creds, err := appconfig.LoadCredentials(p)
	require.NoError(t, err)

	token, ok := creds.Get("github", "token")
	assert.True(t, ok)
	assert.Equal(t, "gh-secret", token)

	key, ok := creds.Get("ibm_cloud", "myacct_api_key")
	assert.True(t, ok)
	assert.Equal(t, "ibm-secret", key)

	_, ok = creds.Get("zenhub", "token")
	assert.False(t, ok)
}

func TestCredentials_EnvironmentOverride(t *testing.T) {
	t.Setenv("ZENHUB_TOKEN", "from-env")
	creds, err := appconfig.LoadCredentials(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	token, ok := creds.Get("zenhub", "token")
	assert.True(t, ok)
	assert.Equal(t, "from-env", token)
}
