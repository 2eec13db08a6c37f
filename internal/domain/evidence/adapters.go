package evidence

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// IgnoreRepoMetadata lists the volatile metadata fields removed before two
// metadata snapshots are compared.
var IgnoreRepoMetadata = map[Service][]string{
	GitHub: {
		"pushed_at",
		"size",
		"updated_at",
		"stargazers_count",
		"subscribers_count",
		"watchers",
		"watchers_count",
		"open_issues",
		"open_issues_count",
		"temp_clone_token",
	},
}

type view struct {
	ev *domain.Evidence
}

// Evidence returns the wrapped evidence.
func (v view) Evidence() *domain.Evidence { return v.ev }

func (v view) empty() bool {
	return v.ev == nil || len(bytes.TrimSpace(v.ev.Content)) == 0
}

func (v view) service() Service { return ServiceFromName(v.ev.Name) }

// RepoCommit wraps a list of commits.
type RepoCommit struct {
	view
	list    lazy[[]domain.JSONObject]
	signed  lazy[[]CommitSignature]
	authors lazy[[]CommitAuthor]
}

// CommitSignature is the signed status of one commit.
type CommitSignature struct {
	SHA    string `json:"sha"`
	URL    string `json:"url"`
	Signed bool   `json:"signed"`
}

// CommitAuthor is the author of one commit. Repo and Branch are filled in
// by checks that report the commit.
type CommitAuthor struct {
	SHA      string `json:"sha"`
	URL      string `json:"url"`
	Author   string `json:"author"`
	DateTime string `json:"datetime"`
	Repo     string `json:"repo,omitempty"`
	Branch   string `json:"branch,omitempty"`
}

type ghCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Author struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
		Verification struct {
			Verified bool `json:"verified"`
		} `json:"verification"`
	} `json:"commit"`
}

// NewRepoCommit wraps ev.
func NewRepoCommit(ev *domain.Evidence) *RepoCommit {
	return &RepoCommit{view: view{ev: ev}}
}

// AsList returns the raw commit list.
func (r *RepoCommit) AsList() ([]domain.JSONObject, error) {
	if r.empty() {
		return nil, nil
	}
	return r.list.get(func() ([]domain.JSONObject, error) {
		var out []domain.JSONObject
		if err := json.Unmarshal(r.ev.Content, &out); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", r.ev.Name, err)
		}
		return out, nil
	})
}

func (r *RepoCommit) ghCommits() ([]ghCommit, error) {
	var commits []ghCommit
	if err := json.Unmarshal(r.ev.Content, &commits); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", r.ev.Name, err)
	}
	return commits, nil
}

// SignedStatus returns the signature verification result per commit.
func (r *RepoCommit) SignedStatus() ([]CommitSignature, error) {
	if r.empty() {
		return nil, nil
	}
	return r.signed.get(func() ([]CommitSignature, error) {
		return dispatch(r.service(), table[[]CommitSignature]{
			GitHub: func() ([]CommitSignature, error) {
				commits, err := r.ghCommits()
				if err != nil {
					return nil, err
				}
				out := make([]CommitSignature, 0, len(commits))
				for _, c := range commits {
					out = append(out, CommitSignature{SHA: c.SHA, URL: c.HTMLURL, Signed: c.Commit.Verification.Verified})
				}
				return out, nil
			},
		})
	})
}

// AuthorInfo returns the author name and date per commit.
func (r *RepoCommit) AuthorInfo() ([]CommitAuthor, error) {
	if r.empty() {
		return nil, nil
	}
	return r.authors.get(func() ([]CommitAuthor, error) {
		return dispatch(r.service(), table[[]CommitAuthor]{
			GitHub: func() ([]CommitAuthor, error) {
				commits, err := r.ghCommits()
				if err != nil {
					return nil, err
				}
				out := make([]CommitAuthor, 0, len(commits))
				for _, c := range commits {
					out = append(out, CommitAuthor{
						SHA:      c.SHA,
						URL:      c.HTMLURL,
						Author:   c.Commit.Author.Name,
						DateTime: c.Commit.Author.Date,
					})
				}
				return out, nil
			},
		})
	})
}

// BranchProtection wraps a branch protection document.
type BranchProtection struct {
	view
	doc       lazy[domain.JSONObject]
	adminEnf  lazy[bool]
	signedReq lazy[bool]
}

// NewBranchProtection wraps ev.
func NewBranchProtection(ev *domain.Evidence) *BranchProtection {
	return &BranchProtection{view: view{ev: ev}}
}

// AsMap returns the decoded document.
func (b *BranchProtection) AsMap() (domain.JSONObject, error) {
	if b.empty() {
		return nil, nil
	}
	return b.doc.get(func() (domain.JSONObject, error) {
		var out domain.JSONObject
		if err := json.Unmarshal(b.ev.Content, &out); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", b.ev.Name, err)
		}
		return out, nil
	})
}

func (b *BranchProtection) enabled(field string) (bool, error) {
	doc, err := b.AsMap()
	if err != nil {
		return false, err
	}
	section, _ := doc[field].(map[string]any)
	enabled, _ := section["enabled"].(bool)
	return enabled, nil
}

// AdminEnforce reports whether protection also applies to administrators.
func (b *BranchProtection) AdminEnforce() (bool, error) {
	if b.empty() {
		return false, nil
	}
	return b.adminEnf.get(func() (bool, error) {
		return dispatch(b.service(), table[bool]{
			GitHub: func() (bool, error) { return b.enabled("enforce_admins") },
		})
	})
}

// SignedCommitsRequired reports whether commit signatures are required.
func (b *BranchProtection) SignedCommitsRequired() (bool, error) {
	if b.empty() {
		return false, nil
	}
	return b.signedReq.get(func() (bool, error) {
		return dispatch(b.service(), table[bool]{
			GitHub: func() (bool, error) { return b.enabled("required_signatures") },
		})
	})
}

// RepoMetadata wraps repository metadata.
type RepoMetadata struct {
	view
	size     lazy[int64]
	relevant lazy[string]
}

// NewRepoMetadata wraps ev.
func NewRepoMetadata(ev *domain.Evidence) *RepoMetadata {
	return &RepoMetadata{view: view{ev: ev}}
}

func (m *RepoMetadata) decode() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(m.ev.Content))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.ev.Name, err)
	}
	return doc, nil
}

// RepoSize returns the repository size reported by the provider.
func (m *RepoMetadata) RepoSize() (int64, error) {
	if m.empty() {
		return 0, nil
	}
	return m.size.get(func() (int64, error) {
		return dispatch(m.service(), table[int64]{
			GitHub: func() (int64, error) {
				doc, err := m.decode()
				if err != nil {
					return 0, err
				}
				n, ok := doc["size"].(json.Number)
				if !ok {
					return 0, fmt.Errorf("%s has no size", m.ev.Name)
				}
				return n.Int64()
			},
		})
	})
}

// RelevantContent returns the metadata without volatile fields, as JSON
// indented by two spaces with sorted keys.
func (m *RepoMetadata) RelevantContent() (string, error) {
	if m.empty() {
		return "", nil
	}
	return m.relevant.get(func() (string, error) {
		ignored, ok := IgnoreRepoMetadata[m.service()]
		if !ok {
			return "", &UnsupportedServiceError{Service: m.service()}
		}
		doc, err := m.decode()
		if err != nil {
			return "", err
		}
		for _, field := range ignored {
			delete(doc, field)
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return "", err
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
	})
}

// PackageRelease wraps a PyPI releases RSS feed.
type PackageRelease struct {
	view
	latest lazy[string]
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"item"`
	} `xml:"channel"`
}

// NewPackageRelease wraps ev.
func NewPackageRelease(ev *domain.Evidence) *PackageRelease {
	return &PackageRelease{view: view{ev: ev}}
}

// LatestRelease returns the title of the newest item in the feed.
func (p *PackageRelease) LatestRelease() (string, error) {
	if p.empty() {
		return "", nil
	}
	return p.latest.get(func() (string, error) {
		var feed rssFeed
		if err := xml.Unmarshal(p.ev.Content, &feed); err != nil {
			return "", fmt.Errorf("parsing %s: %w", p.ev.Name, err)
		}
		if len(feed.Channel.Items) == 0 {
			return "", errors.New("releases feed has no items")
		}
		return feed.Channel.Items[0].Title, nil
	})
}

// AbandonedEvidence wraps the abandoned evidence listing.
type AbandonedEvidence struct {
	view
	doc lazy[AbandonedDoc]
}

// AbandonedDoc is the content of raw/auditree/abandoned_evidence.json.
type AbandonedDoc struct {
	Abandoned  []string          `json:"abandoned"`
	Exceptions map[string]string `json:"exceptions"`
}

// NewAbandonedEvidence wraps ev.
func NewAbandonedEvidence(ev *domain.Evidence) *AbandonedEvidence {
	return &AbandonedEvidence{view: view{ev: ev}}
}

// Doc returns the decoded listing; empty content yields an empty listing.
func (a *AbandonedEvidence) Doc() (AbandonedDoc, error) {
	if a.empty() {
		return AbandonedDoc{Exceptions: map[string]string{}}, nil
	}
	return a.doc.get(func() (AbandonedDoc, error) {
		var doc AbandonedDoc
		if err := json.Unmarshal(a.ev.Content, &doc); err != nil {
			return AbandonedDoc{}, fmt.Errorf("parsing %s: %w", a.ev.Name, err)
		}
		if doc.Exceptions == nil {
			doc.Exceptions = map[string]string{}
		}
		return doc, nil
	})
}
