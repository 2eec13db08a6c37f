package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no configuration path is given.
const DefaultFile = "auditree.json"

// YAMLLoader implements domain.ConfigLoader for YAML and JSON documents.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads the configuration document at path. A missing file yields
// DefaultConfig so that fetchers with built-in defaults still run.
func (l *YAMLLoader) Load(path string) (domain.Config, error) {
	if path == "" {
		path = DefaultFile
	}
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.Config{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return domain.Config{}, fmt.Errorf("parsing %s: %w", name, err)
	}
	raw := map[string]any{}
	if len(root.Content) > 0 {
		if err := root.Decode(&raw); err != nil {
			return domain.Config{}, fmt.Errorf("parsing %s: %w", name, err)
		}
	}

	order := map[string][]string{}
	if len(root.Content) > 0 {
		collectKeyOrder(root.Content[0], nil, order)
	}

	cfg := domain.NewConfig(raw, order)
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return cfg, nil
}

// collectKeyOrder records the document order of every mapping's keys,
// indexed by the joined path of the mapping.
func collectKeyOrder(n *yaml.Node, path []string, order map[string][]string) {
	if n.Kind != yaml.MappingNode {
		return
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		keys = append(keys, key)
		collectKeyOrder(n.Content[i+1], append(append([]string(nil), path...), key), order)
	}
	order[domain.KeyPath(path...)] = keys
}
