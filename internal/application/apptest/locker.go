// Package apptest provides in-memory ports for application tests.
package apptest

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

var _ domain.EvidenceLocker = (*MemLocker)(nil)

type version struct {
	at      time.Time
	content []byte
}

// MemLocker is an in-memory domain.EvidenceLocker. Every AddEvidence call
// becomes a version stamped with Now; Seed adds versions at chosen times.
type MemLocker struct {
	Now        domain.Clock
	URL        string
	BranchName string

	// Abandoned, Empty and Large answer the locker wide queries verbatim.
	Abandoned []string
	Empty     []string
	Large     map[string]int64

	// Commits records every commit message.
	Commits []string
	// LargeMin and Threshold record the last query arguments.
	LargeMin  int64
	Threshold time.Duration

	versions map[string][]version
	meta     map[string]*domain.EvidenceMetadata
}

// NewMemLocker returns an empty locker whose clock is pinned at now.
func NewMemLocker(now time.Time) *MemLocker {
	return &MemLocker{
		Now:        func() time.Time { return now },
		URL:        "https://github.com/org/locker",
		BranchName: "master",
		versions:   map[string][]version{},
		meta:       map[string]*domain.EvidenceMetadata{},
	}
}

func key(p string) string {
	kind, category, name := domain.SplitEvidencePath(p)
	return path.Join(string(kind), category, name)
}

// Seed stores content for p as of at with the given TTL.
func (l *MemLocker) Seed(p string, content []byte, at time.Time, ttl time.Duration) {
	k := key(p)
	vs := append(l.versions[k], version{at: at, content: content})
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].at.Before(vs[j].at) })
	l.versions[k] = vs
	last := vs[len(vs)-1]
	ev := &domain.Evidence{Content: last.content}
	l.meta[k] = &domain.EvidenceMetadata{Path: k, LastUpdate: last.at, TTL: ttl, Empty: ev.IsEmpty()}
}

// SeedMetadata records metadata for p without content.
func (l *MemLocker) SeedMetadata(p string, md domain.EvidenceMetadata) {
	md.Path = key(p)
	l.meta[md.Path] = &md
}

// Content returns the latest content stored at p, or nil.
func (l *MemLocker) Content(p string) []byte {
	vs := l.versions[key(p)]
	if len(vs) == 0 {
		return nil
	}
	return vs[len(vs)-1].content
}

// Versions returns how many versions of p were stored.
func (l *MemLocker) Versions(p string) int { return len(l.versions[key(p)]) }

func (l *MemLocker) AddEvidence(ev *domain.Evidence) error {
	k := ev.Path()
	now := l.Now()
	l.versions[k] = append(l.versions[k], version{at: now, content: ev.Content})
	l.meta[k] = &domain.EvidenceMetadata{
		Path:        k,
		LastUpdate:  now,
		TTL:         ev.TTL,
		Description: ev.Description,
		Empty:       ev.IsEmpty(),
	}
	return nil
}

func (l *MemLocker) shell(k string) *domain.Evidence {
	kind, category, name := domain.SplitEvidencePath(k)
	ev := &domain.Evidence{Kind: kind, Category: category, Name: name}
	if md := l.meta[k]; md != nil {
		ev.TTL = md.TTL
		ev.Description = md.Description
	}
	return ev
}

func (l *MemLocker) GetEvidence(p string) (*domain.Evidence, error) {
	k := key(p)
	vs := l.versions[k]
	if len(vs) == 0 {
		return nil, fmt.Errorf("%s: %w", k, domain.ErrEvidenceNotFound)
	}
	ev := l.shell(k)
	ev.Content = vs[len(vs)-1].content
	return ev, nil
}

func (l *MemLocker) GetHistoricalEvidence(p string, at time.Time) (*domain.Evidence, error) {
	k := key(p)
	vs := l.versions[k]
	for i := len(vs) - 1; i >= 0; i-- {
		if !vs[i].at.After(at) {
			ev := l.shell(k)
			ev.Content = vs[i].content
			return ev, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", k, domain.ErrHistoricalEvidenceNotFound)
}

func (l *MemLocker) GetEvidenceMetadata(p string) (*domain.EvidenceMetadata, error) {
	md, ok := l.meta[key(p)]
	if !ok {
		return nil, nil
	}
	cp := *md
	return &cp, nil
}

func (l *MemLocker) AbandonedEvidences(threshold time.Duration) ([]string, error) {
	l.Threshold = threshold
	return l.Abandoned, nil
}

func (l *MemLocker) EmptyEvidences() ([]string, error) { return l.Empty, nil }

func (l *MemLocker) LargeFiles(minSize int64) (map[string]int64, error) {
	l.LargeMin = minSize
	out := map[string]int64{}
	for p, size := range l.Large {
		if size > minSize {
			out[p] = size
		}
	}
	return out, nil
}

func (l *MemLocker) Commit(message string) error {
	l.Commits = append(l.Commits, message)
	return nil
}

func (l *MemLocker) CommitHash() (string, error) {
	return fmt.Sprintf("%040d", len(l.Commits)), nil
}

func (l *MemLocker) RepoURL() string { return l.URL }

func (l *MemLocker) Branch() string { return l.BranchName }

// Creds is a map backed domain.Credentials keyed by "section.key".
type Creds map[string]string

func (c Creds) Get(section, k string) (string, bool) {
	v, ok := c[section+"."+k]
	return v, ok
}
