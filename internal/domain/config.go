package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Config is the nested configuration document addressed by dotted paths
// such as org.auditree.abandoned_evidence.threshold. Only path segments are
// split on dots, so map keys that contain dots (repository URLs) survive as
// leaf keys.
type Config struct {
	raw   map[string]any
	order map[string][]string
}

// NewConfig wraps a decoded document. order optionally maps a joined path
// (see KeyPath) to the document order of the keys at that path.
func NewConfig(raw map[string]any, order map[string][]string) Config {
	if raw == nil {
		raw = map[string]any{}
	}
	return Config{raw: raw, order: order}
}

// DefaultConfig returns an empty configuration; every lookup falls back to
// the caller supplied default.
func DefaultConfig() Config {
	return NewConfig(nil, nil)
}

// KeyPath joins path segments the way the key order index expects.
func KeyPath(segments ...string) string {
	return strings.Join(segments, "\x1f")
}

// Raw returns the underlying document.
func (c Config) Raw() map[string]any {
	return c.raw
}

func (c Config) lookup(path string) (any, bool) {
	var cur any = c.raw
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path resolves to a non-nil value.
func (c Config) Has(path string) bool {
	v, ok := c.lookup(path)
	return ok && v != nil
}

// Get returns the value at path, or def when it is absent.
func (c Config) Get(path string, def any) any {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	return v
}

// String returns the value at path as a string.
func (c Config) String(path, def string) string {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	return cast.ToString(v)
}

// Int64 returns the value at path as an int64.
func (c Config) Int64(path string, def int64) int64 {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value at path as a bool.
func (c Config) Bool(path string, def bool) bool {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	return cast.ToBool(v)
}

// StringSlice returns the value at path as a list of strings. A scalar is
// promoted to a single element list.
func (c Config) StringSlice(path string, def []string) []string {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	if s, isString := v.(string); isString {
		return []string{s}
	}
	return cast.ToStringSlice(v)
}

// StringMap returns the value at path as a map.
func (c Config) StringMap(path string) map[string]any {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return nil
	}
	return cast.ToStringMap(v)
}

// StringMapString returns the value at path as a map of strings.
func (c Config) StringMapString(path string) map[string]string {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return nil
	}
	return cast.ToStringMapString(v)
}

// StringSliceMap returns the value at path as a map of string lists, or def
// when absent.
func (c Config) StringSliceMap(path string, def map[string][]string) map[string][]string {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return def
	}
	return cast.ToStringMapStringSlice(v)
}

// Maps returns the list of maps at path.
func (c Config) Maps(path string) []map[string]any {
	v, ok := c.lookup(path)
	if !ok || v == nil {
		return nil
	}
	items := cast.ToSlice(v)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, err := cast.ToStringMapE(item); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Keys returns the keys of the map at path in document order. Maps built
// without an order index come back sorted.
func (c Config) Keys(path string) []string {
	m := c.StringMap(path)
	if m == nil {
		return nil
	}
	return OrderedKeys(m, c.order[KeyPath(strings.Split(path, ".")...)])
}

// NestedKeys returns the keys of the map found by following keys below
// path, in document order. keys are literal and may contain dots.
func (c Config) NestedKeys(path string, keys ...string) []string {
	cur, ok := c.lookup(path)
	for _, k := range keys {
		if !ok {
			break
		}
		var m map[string]any
		if m, ok = cur.(map[string]any); ok {
			cur, ok = m[k]
		}
	}
	if !ok || cur == nil {
		return nil
	}
	m, err := cast.ToStringMapE(cur)
	if err != nil {
		return nil
	}
	segments := append(strings.Split(path, "."), keys...)
	return OrderedKeys(m, c.order[KeyPath(segments...)])
}

// OrderedKeys returns the keys of m following hint, then any remaining keys
// sorted.
func OrderedKeys[V any](m map[string]V, hint []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range hint {
		if _, ok := m[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Validate checks the values the checks and fetchers interpret numerically
// or structurally.
func (c Config) Validate() error {
	for _, p := range []string{
		"org.auditree.abandoned_evidence.threshold",
		"locker.large_file_threshold",
	} {
		v, ok := c.lookup(p)
		if !ok || v == nil {
			continue
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return fmt.Errorf("%s must be a number of seconds or bytes: %w", p, err)
		}
		if n <= 0 {
			return fmt.Errorf("%s = %d (must be positive)", p, n)
		}
	}

	if v, ok := c.lookup("org.auditree.repo_integrity.branches"); ok && v != nil {
		if _, err := cast.ToStringMapE(v); err != nil {
			return fmt.Errorf("org.auditree.repo_integrity.branches must map repository URLs to branch lists")
		}
	}

	for i, org := range c.Maps("org.permissions.org_integrity.orgs") {
		if cast.ToString(org["url"]) == "" {
			return fmt.Errorf("org.permissions.org_integrity.orgs[%d] has no url", i)
		}
	}

	for i, repo := range c.Maps("org.issue_mgmt.github") {
		if cast.ToString(repo["repo"]) == "" {
			return fmt.Errorf("org.issue_mgmt.github[%d] has no repo", i)
		}
	}

	return nil
}
