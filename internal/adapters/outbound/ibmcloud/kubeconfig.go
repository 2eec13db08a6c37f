package ibmcloud

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoClusterToken is returned when a cluster config bundle carries no
// kube-config id-token.
var ErrNoClusterToken = errors.New("no token in cluster config")

// ErrNoClusterCA is returned when a cluster config bundle carries no .pem
// CA certificate.
var ErrNoClusterCA = errors.New("no CA certificate in cluster config")

type kubeconfig struct {
	Users []struct {
		User struct {
			AuthProvider struct {
				Config struct {
					IDToken string `yaml:"id-token"`
				} `yaml:"config"`
			} `yaml:"auth-provider"`
		} `yaml:"user"`
	} `yaml:"users"`
}

// ParseClusterConfig extracts the id-token of the first kubeconfig user and
// the CA certificate from a cluster config zip.
func ParseClusterConfig(data []byte) (token string, ca []byte, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("opening cluster config: %w", err)
	}
	for _, f := range zr.File {
		base := path.Base(f.Name)
		switch {
		case strings.HasPrefix(base, "kube-config"):
			raw, err := readZipFile(f)
			if err != nil {
				return "", nil, err
			}
			var kc kubeconfig
			if err := yaml.Unmarshal(raw, &kc); err != nil {
				return "", nil, fmt.Errorf("parsing %s: %w", f.Name, err)
			}
			if len(kc.Users) > 0 {
				token = kc.Users[0].User.AuthProvider.Config.IDToken
			}
		case strings.HasSuffix(base, ".pem"):
			if ca, err = readZipFile(f); err != nil {
				return "", nil, err
			}
		}
	}
	if token == "" {
		return "", nil, ErrNoClusterToken
	}
	if ca == nil {
		return "", nil, ErrNoClusterCA
	}
	return token, ca, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func basicAuth(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}
