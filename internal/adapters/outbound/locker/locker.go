// Package locker stores evidence in a git repository. Every evidence
// category directory carries an index.json with the metadata of its files,
// and history is answered from the commit log.
package locker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const indexFile = "index.json"

// PrivateDir holds local tool state such as run history. It is never
// committed and never reported as evidence.
const PrivateDir = ".arboretum"

// Options configure a locker.
type Options struct {
	RepoURL string
	Branch  string
	// Author is used for locker commits.
	Author string
	Email  string
	Now    domain.Clock
	Logger *zap.Logger
}

// GitLocker implements domain.EvidenceLocker on a local git working tree.
type GitLocker struct {
	root string
	repo *git.Repository
	opts Options
	log  *zap.Logger
}

type indexEntry struct {
	LastUpdate  string  `json:"last_update"`
	TTL         float64 `json:"ttl"`
	Description string  `json:"description,omitempty"`
	Empty       bool    `json:"empty,omitempty"`
}

// Open opens the git repository at root, initializing it when root holds
// no repository yet.
func Open(root string, opts Options) (*GitLocker, error) {
	if opts.Branch == "" {
		opts.Branch = "master"
	}
	if opts.Author == "" {
		opts.Author = "arboretum"
	}
	if opts.Email == "" {
		opts.Email = "arboretum@localhost"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		repo, err = git.PlainInit(root, false)
		if err == nil {
			opts.Logger.Info("initialized evidence locker", zap.String("path", root))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening locker %s: %w", root, err)
	}
	return &GitLocker{root: root, repo: repo, opts: opts, log: opts.Logger}, nil
}

// Root returns the working tree directory.
func (l *GitLocker) Root() string { return l.root }

// RepoURL returns the remote URL the locker represents.
func (l *GitLocker) RepoURL() string { return l.opts.RepoURL }

// Branch returns the locker branch.
func (l *GitLocker) Branch() string { return l.opts.Branch }

// abs resolves p inside the working tree. Symlinks are followed only as
// far as they stay under the root.
func (l *GitLocker) abs(p string) (string, error) {
	full, err := securejoin.SecureJoin(l.root, filepath.FromSlash(p))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return full, nil
}

func indexPath(evPath string) (dir, name string) {
	dir, name = path.Split(evPath)
	return path.Join(dir, indexFile), name
}

func (l *GitLocker) readIndex(p string) (map[string]indexEntry, error) {
	full, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]indexEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	idx := map[string]indexEntry{}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	return idx, nil
}

func (l *GitLocker) writeIndex(p string, idx map[string]indexEntry) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	full, err := l.abs(p)
	if err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// AddEvidence writes the evidence file and records its metadata. Nothing is
// committed until Commit.
func (l *GitLocker) AddEvidence(ev *domain.Evidence) error {
	p, err := domain.CleanEvidencePath(ev.Path())
	if err != nil {
		return err
	}
	full, err := l.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, ev.Content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}

	idxPath, name := indexPath(p)
	idx, err := l.readIndex(idxPath)
	if err != nil {
		return err
	}
	idx[name] = indexEntry{
		LastUpdate:  l.opts.Now().UTC().Format(domain.LockerTimeFormat),
		TTL:         ev.TTL.Seconds(),
		Description: ev.Description,
		Empty:       ev.IsEmpty(),
	}
	if err := l.writeIndex(idxPath, idx); err != nil {
		return err
	}
	l.log.Debug("evidence added", zap.String("path", p), zap.Int("bytes", len(ev.Content)))
	return nil
}

func (l *GitLocker) shell(p string) (*domain.Evidence, error) {
	p, err := domain.CleanEvidencePath(p)
	if err != nil {
		return nil, err
	}
	kind, category, name := domain.SplitEvidencePath(p)
	ev := &domain.Evidence{Kind: kind, Category: category, Name: name}
	md, err := l.GetEvidenceMetadata(ev.Path())
	if err != nil {
		return nil, err
	}
	if md != nil {
		ev.TTL = md.TTL
		ev.Description = md.Description
	}
	return ev, nil
}

// GetEvidence returns the current version of the evidence at p.
func (l *GitLocker) GetEvidence(p string) (*domain.Evidence, error) {
	ev, err := l.shell(p)
	if err != nil {
		return nil, err
	}
	full, err := l.abs(ev.Path())
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ev.Path(), domain.ErrEvidenceNotFound)
	}
	if err != nil {
		return nil, err
	}
	ev.Content = data
	return ev, nil
}

// GetHistoricalEvidence returns the version of p committed on or before at.
func (l *GitLocker) GetHistoricalEvidence(p string, at time.Time) (*domain.Evidence, error) {
	ev, err := l.shell(p)
	if err != nil {
		return nil, err
	}
	full := ev.Path()
	notFound := fmt.Errorf("%s on or before %s: %w", full, at.UTC().Format(time.RFC3339), domain.ErrHistoricalEvidenceNotFound)

	if _, err := l.repo.Head(); err != nil {
		return nil, notFound
	}
	iter, err := l.repo.Log(&git.LogOptions{FileName: &full, Until: &at})
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", full, err)
	}
	defer iter.Close()

	c, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", full, err)
	}
	f, err := c.File(full)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	ev.Content = []byte(content)
	return ev, nil
}

// GetEvidenceMetadata returns the recorded metadata of p, or nil.
func (l *GitLocker) GetEvidenceMetadata(p string) (*domain.EvidenceMetadata, error) {
	full, err := domain.CleanEvidencePath(p)
	if err != nil {
		return nil, err
	}
	_, _, name := domain.SplitEvidencePath(full)
	idxPath, _ := indexPath(full)
	idx, err := l.readIndex(idxPath)
	if err != nil {
		return nil, err
	}
	entry, ok := idx[name]
	if !ok {
		return nil, nil
	}
	md := &domain.EvidenceMetadata{
		Path:        full,
		TTL:         time.Duration(entry.TTL * float64(time.Second)),
		Description: entry.Description,
		Empty:       entry.Empty,
	}
	if entry.LastUpdate != "" {
		t, err := time.Parse(domain.LockerTimeFormat, entry.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("%s last_update: %w", full, err)
		}
		md.LastUpdate = t
	}
	return md, nil
}

// walk visits every evidence file under dir, skipping index files and
// hidden entries.
func (l *GitLocker) walk(dir string, fn func(rel string, info fs.FileInfo) error) error {
	base, err := l.abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(base); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.Walk(base, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		hidden := p != base && strings.HasPrefix(info.Name(), ".")
		if info.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || info.Name() == indexFile {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info)
	})
}

// walkedMetadata is GetEvidenceMetadata for files found by walk. Files
// outside a category directory have no metadata.
func (l *GitLocker) walkedMetadata(rel string) (*domain.EvidenceMetadata, error) {
	md, err := l.GetEvidenceMetadata(rel)
	if errors.Is(err, domain.ErrInvalidEvidencePath) {
		return nil, nil
	}
	return md, err
}

// AbandonedEvidences lists raw evidence not updated within threshold.
// Files without recorded metadata count as abandoned.
func (l *GitLocker) AbandonedEvidences(threshold time.Duration) ([]string, error) {
	cutoff := l.opts.Now().UTC().Add(-threshold)
	var out []string
	err := l.walk(string(domain.KindRaw), func(rel string, _ fs.FileInfo) error {
		md, err := l.walkedMetadata(rel)
		if err != nil {
			return err
		}
		if md == nil || md.LastUpdate.Before(cutoff) {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// EmptyEvidences lists raw evidence recorded as having no content.
func (l *GitLocker) EmptyEvidences() ([]string, error) {
	var out []string
	err := l.walk(string(domain.KindRaw), func(rel string, _ fs.FileInfo) error {
		md, err := l.walkedMetadata(rel)
		if err != nil {
			return err
		}
		if md != nil && md.Empty {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// LargeFiles returns every locker file bigger than minSize bytes.
func (l *GitLocker) LargeFiles(minSize int64) (map[string]int64, error) {
	out := map[string]int64{}
	err := l.walk(".", func(rel string, info fs.FileInfo) error {
		if info.Size() > minSize {
			out[rel] = info.Size()
		}
		return nil
	})
	return out, err
}

// Commit stages every change and commits it. A clean tree is not an error.
func (l *GitLocker) Commit(message string) error {
	wt, err := l.repo.Worktree()
	if err != nil {
		return err
	}
	wt.Excludes = append(wt.Excludes, gitignore.ParsePattern(PrivateDir+"/", nil))
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging locker changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return err
	}
	if status.IsClean() {
		l.log.Debug("locker unchanged, nothing to commit")
		return nil
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: l.opts.Author, Email: l.opts.Email, When: l.opts.Now()},
	})
	if err != nil {
		return fmt.Errorf("committing locker: %w", err)
	}
	l.log.Info("locker committed", zap.String("commit", hash.String()), zap.String("message", firstLine(message)))
	return nil
}

// CommitHash returns the HEAD commit hash.
func (l *GitLocker) CommitHash() (string, error) {
	head, err := l.repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
