package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/timefmt"
)

const (
	sectionNoPrior          = "Locker Repository Metadata - (No prior evidence)"
	sectionShrunk           = "Locker Repository Metadata - (Locker shrunk)"
	sectionMetadataChanged  = "Locker Repository Metadata - (Metadata changed)"
	sectionAdminEnforce     = "Locker Branch Protection"
	sectionUnsigned         = "Locker Recent Commits - (Unsigned)"
	sectionSignedDisabled   = "Locker Branch Protection - (Signed Commits Disabled)"
	sectionRecentCommits    = "Recent Commits Found"
	sectionRecentFileCommit = "Recent Commits Found - (`%s`)"
)

// NoPriorMetadata fails a repository whose metadata has no version on or
// before the comparison date.
func NoPriorMetadata(r *domain.Results, repoURL string, at time.Time) {
	r.AddFailure(sectionNoPrior, fmt.Sprintf(
		"No prior evidence found on or prior to %s for locker `%s`.", timefmt.ReportDate(at), repoURL))
}

// MetadataWindow names the evidence compared and the dates of both versions.
type MetadataWindow struct {
	Path     string
	Previous time.Time
	Now      time.Time
}

// MetadataIntegrity warns when the repository shrank and fails when any
// non-volatile metadata changed, quoting a context diff.
func MetadataIntegrity(r *domain.Results, repoURL string, w MetadataWindow, previous, current *evidence.RepoMetadata) error {
	prevSize, err := previous.RepoSize()
	if err != nil {
		return err
	}
	curSize, err := current.RepoSize()
	if err != nil {
		return err
	}
	if curSize < prevSize {
		r.AddWarning(sectionShrunk, fmt.Sprintf(
			"Locker `%s` appears to have shrunk in size/content.  It was %d and is now %d.",
			repoURL, prevSize, curSize))
	}

	prevContent, err := previous.RelevantContent()
	if err != nil {
		return err
	}
	curContent, err := current.RelevantContent()
	if err != nil {
		return err
	}
	diff, err := difflib.GetContextDiffString(difflib.ContextDiff{
		A:        splitLinesKeepEnds(prevContent),
		B:        splitLinesKeepEnds(curContent),
		FromFile: w.Path,
		ToFile:   w.Path,
		FromDate: timefmt.ReportDate(w.Previous),
		ToDate:   timefmt.ReportDate(w.Now),
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("diffing %s: %w", w.Path, err)
	}
	if diff != "" {
		r.AddFailure(sectionMetadataChanged, fmt.Sprintf(
			"Locker `%s` details have changed.\n\n```\n%s\n```\n", repoURL, diff))
	}
	return nil
}

// splitLinesKeepEnds splits s after each newline. Unlike difflib.SplitLines
// a final line without a newline is kept as is.
func splitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// AdminEnforcement fails a branch whose protection exempts administrators.
func AdminEnforcement(r *domain.Results, repoURL, branch string, enforced bool) {
	if enforced {
		return
	}
	r.AddFailure(sectionAdminEnforce, fmt.Sprintf(
		"Branch protection for `%s` `%s` branch is not enforced for administrators.", repoURL, branch))
}

// UnsignedCommits fails every commit without a verified signature.
func UnsignedCommits(r *domain.Results, repoURL, branch string, commits []evidence.CommitSignature) {
	for _, c := range commits {
		if c.Signed {
			continue
		}
		sha := c.SHA
		if len(sha) > 8 {
			sha = sha[:8]
		}
		r.AddFailure(sectionUnsigned, fmt.Sprintf(
			"[%s](%s) commit in `%s` `%s` branch.", sha, c.URL, repoURL, branch))
	}
}

// SignedCommitsRequired fails a branch whose protection does not require
// signed commits.
func SignedCommitsRequired(r *domain.Results, repoURL, branch string, required bool) {
	if required {
		return
	}
	r.AddFailure(sectionSignedDisabled, fmt.Sprintf("`%s` `%s` branch.", repoURL, branch))
}

// NewBranchCommits warns on every commit found on a watched branch.
func NewBranchCommits(r *domain.Results, repoURL, branch string, commits []evidence.CommitAuthor) {
	newCommits(r, sectionRecentCommits, repoURL, branch, commits)
}

// NewFilepathCommits warns on every commit that touched a watched file.
func NewFilepathCommits(r *domain.Results, repoURL, branch, filepath string, commits []evidence.CommitAuthor) {
	newCommits(r, fmt.Sprintf(sectionRecentFileCommit, filepath), repoURL, branch, commits)
}

func newCommits(r *domain.Results, section, repoURL, branch string, commits []evidence.CommitAuthor) {
	for _, c := range commits {
		c.Repo = repoURL
		c.Branch = branch
		r.AddWarning(section, c)
	}
}
