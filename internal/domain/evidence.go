package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Common evidence lifetimes.
const (
	Hour = time.Hour
	Day  = 24 * time.Hour
)

// LockerTimeFormat is the layout of last_update values in locker metadata.
const LockerTimeFormat = "2006-01-02T15:04:05.000000"

// EvidenceKind separates fetched data from check generated reports.
type EvidenceKind string

const (
	KindRaw    EvidenceKind = "raw"
	KindReport EvidenceKind = "reports"
)

// Evidence is one stored artifact. Content is replaced wholesale by the
// fetcher that owns it; the locker keeps every superseded version.
type Evidence struct {
	Kind        EvidenceKind  `json:"kind"`
	Category    string        `json:"category"`
	Name        string        `json:"name"`
	TTL         time.Duration `json:"ttl"`
	Description string        `json:"description"`
	Content     []byte        `json:"-"`
}

// NewRawEvidence returns raw evidence with no content.
func NewRawEvidence(category, name string, ttl time.Duration, description string) *Evidence {
	return &Evidence{Kind: KindRaw, Category: category, Name: name, TTL: ttl, Description: description}
}

// NewReportEvidence returns report evidence with no content.
func NewReportEvidence(category, name string, ttl time.Duration, description string) *Evidence {
	return &Evidence{Kind: KindReport, Category: category, Name: name, TTL: ttl, Description: description}
}

// Path returns the locker relative path, e.g. raw/auditree/abandoned_evidence.json.
func (e *Evidence) Path() string {
	return path.Join(string(e.Kind), e.Category, e.Name)
}

// SetContent replaces the evidence content.
func (e *Evidence) SetContent(content []byte) {
	e.Content = content
}

// SetJSON marshals v as indented JSON and stores it as content.
func (e *Evidence) SetJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	e.Content = data
	return nil
}

// IsEmpty reports whether the content carries no data. Whitespace and empty
// JSON containers count as empty.
func (e *Evidence) IsEmpty() bool {
	trimmed := bytes.TrimSpace(e.Content)
	switch string(trimmed) {
	case "", "{}", "[]", "null", `""`:
		return true
	}
	return false
}

// SplitEvidencePath splits "raw/<category>/<name>" into its parts. Paths
// without a kind prefix are treated as raw.
func SplitEvidencePath(p string) (kind EvidenceKind, category, name string) {
	p = strings.Trim(p, "/")
	kind = KindRaw
	if rest, ok := strings.CutPrefix(p, string(KindReport)+"/"); ok {
		kind, p = KindReport, rest
	} else if rest, ok := strings.CutPrefix(p, string(KindRaw)+"/"); ok {
		p = rest
	}
	category, name = path.Split(p)
	return kind, strings.TrimSuffix(category, "/"), name
}

// CleanEvidencePath validates p and returns it as "<kind>/<category>/<name>".
// Parent references, dot segments, hidden files or directories and paths
// without both a category and a name are rejected.
func CleanEvidencePath(p string) (string, error) {
	trimmed := strings.Trim(p, "/")
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || strings.HasPrefix(seg, ".") || strings.ContainsRune(seg, '\\') {
			return "", fmt.Errorf("%q: %w", p, ErrInvalidEvidencePath)
		}
	}
	kind, category, name := SplitEvidencePath(trimmed)
	if category == "" || name == "" {
		return "", fmt.Errorf("%q: %w", p, ErrInvalidEvidencePath)
	}
	return path.Join(string(kind), category, name), nil
}

// EvidenceMetadata is what the locker records about the latest version of
// an evidence file.
type EvidenceMetadata struct {
	Path        string        `json:"path"`
	LastUpdate  time.Time     `json:"last_update"`
	TTL         time.Duration `json:"ttl"`
	Description string        `json:"description,omitempty"`
	Empty       bool          `json:"empty,omitempty"`
}

// IsFresh reports whether the evidence is still within its TTL at now.
func (m EvidenceMetadata) IsFresh(now time.Time) bool {
	if m.LastUpdate.IsZero() || m.TTL <= 0 {
		return false
	}
	return m.LastUpdate.Add(m.TTL).After(now)
}

// FormattedLastUpdate renders LastUpdate in LockerTimeFormat.
func (m EvidenceMetadata) FormattedLastUpdate() string {
	if m.LastUpdate.IsZero() {
		return ""
	}
	return m.LastUpdate.UTC().Format(LockerTimeFormat)
}
