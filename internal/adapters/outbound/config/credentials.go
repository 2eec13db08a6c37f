package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultCredentialsFile is the INI file read when no path is given.
func DefaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".credentials"
	}
	return filepath.Join(home, ".credentials")
}

// Credentials implements domain.Credentials on an INI file. Every value can
// be overridden by an environment variable named SECTION_KEY, e.g.
// GITHUB_TOKEN or IBM_CLOUD_MYACCT_API_KEY.
type Credentials struct {
	v *viper.Viper
}

// LoadCredentials reads the INI file at path. A missing file leaves only
// the environment as a source.
func LoadCredentials(path string) (*Credentials, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultCredentialsFile()
	}
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading credentials %s: %w", filepath.Base(path), err)
		}
	}
	return &Credentials{v: v}, nil
}

// Get returns the secret stored under section and key.
func (c *Credentials) Get(section, key string) (string, bool) {
	k := strings.ToLower(section + "." + key)
	if !c.v.IsSet(k) {
		return "", false
	}
	val := c.v.GetString(k)
	return val, val != ""
}
