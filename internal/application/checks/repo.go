package checks

import (
	"context"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/check"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// Locker integrity settings fall back to the repo integrity ones.
const (
	lockerReposKey    = "org.auditree.locker_integrity.repos"
	lockerBranchesKey = "org.auditree.locker_integrity.branches"
	reposKey          = "org.auditree.repo_integrity.repos"
	branchesKey       = "org.auditree.repo_integrity.branches"
)

func lockerBranches(run *application.Run) []fetchers.RepoBranches {
	return fetchers.Branches(run.Config, run.Locker.RepoURL(), lockerBranchesKey, branchesKey)
}

// eachBranch calls fn with the parsed repository and path of the evidence
// named by name for every watched branch, stopping at the first error.
func eachBranch(branches []fetchers.RepoBranches, name func(evidence.RepoRef, string) string, fn func(ref evidence.RepoRef, branch, path string) error) error {
	for _, rb := range branches {
		ref, err := evidence.ParseRepoURL(rb.URL)
		if err != nil {
			return err
		}
		for _, branch := range rb.Branches {
			if err := fn(ref, branch, fetchers.RawPath("auditree", name(ref, branch))); err != nil {
				return err
			}
		}
	}
	return nil
}

func protectionName(ref evidence.RepoRef, branch string) string {
	return evidence.BranchProtectionName(ref.Service, ref.Repo, branch)
}

func commitsName(ref evidence.RepoRef, branch string) string {
	return evidence.RecentCommitsName(ref.Service, ref.Repo, branch)
}

// LockerRepoIntegrity watches the evidence locker repositories for metadata
// changes and for branch protection that exempts administrators.
type LockerRepoIntegrity struct{ about }

func (c *LockerRepoIntegrity) Tests() []application.Test {
	return []application.Test{
		{Name: "MetadataIntegrity", Run: c.metadata},
		{Name: "BranchProtectionIntegrity", Run: c.protection},
	}
}

func (c *LockerRepoIntegrity) metadata(_ context.Context, run *application.Run, r *domain.Results) error {
	for _, url := range fetchers.Repos(run.Config, run.Locker.RepoURL(), lockerReposKey, reposKey) {
		ref, err := evidence.ParseRepoURL(url)
		if err != nil {
			return err
		}
		p := fetchers.RawPath("auditree", evidence.RepoMetadataName(ref.Service, ref.Repo))
		current, err := run.Evidence(p)
		if err != nil {
			return err
		}
		at := comparisonDate(run)
		previous, err := historical(run, p, at)
		if err != nil {
			return err
		}
		if previous == nil {
			check.NoPriorMetadata(r, url, at)
			continue
		}
		w := check.MetadataWindow{Path: p, Previous: at, Now: run.Now}
		if err := check.MetadataIntegrity(r, url, w, evidence.NewRepoMetadata(previous), evidence.NewRepoMetadata(current)); err != nil {
			return err
		}
	}
	return nil
}

func (c *LockerRepoIntegrity) protection(_ context.Context, run *application.Run, r *domain.Results) error {
	return eachBranch(lockerBranches(run), protectionName, func(ref evidence.RepoRef, branch, p string) error {
		ev, err := run.Evidence(p)
		if err != nil {
			return err
		}
		enforced, err := evidence.NewBranchProtection(ev).AdminEnforce()
		if err != nil {
			return err
		}
		check.AdminEnforcement(r, ref.URL, branch, enforced)
		return nil
	})
}

// LockerCommitIntegrity requires signed commits on the locker branches.
type LockerCommitIntegrity struct{ about }

func (c *LockerCommitIntegrity) Tests() []application.Test {
	return []application.Test{
		{Name: "RecentCommitIntegrity", Run: c.commits},
		{Name: "BranchProtectionCommitIntegrity", Run: c.protection},
	}
}

func (c *LockerCommitIntegrity) commits(_ context.Context, run *application.Run, r *domain.Results) error {
	return eachBranch(lockerBranches(run), commitsName, func(ref evidence.RepoRef, branch, p string) error {
		ev, err := run.Evidence(p)
		if err != nil {
			return err
		}
		signatures, err := evidence.NewRepoCommit(ev).SignedStatus()
		if err != nil {
			return err
		}
		check.UnsignedCommits(r, ref.URL, branch, signatures)
		return nil
	})
}

func (c *LockerCommitIntegrity) protection(_ context.Context, run *application.Run, r *domain.Results) error {
	return eachBranch(lockerBranches(run), protectionName, func(ref evidence.RepoRef, branch, p string) error {
		ev, err := run.Evidence(p)
		if err != nil {
			return err
		}
		required, err := evidence.NewBranchProtection(ev).SignedCommitsRequired()
		if err != nil {
			return err
		}
		check.SignedCommitsRequired(r, ref.URL, branch, required)
		return nil
	})
}

// RepoBranchNewCommits surfaces every commit on the watched branches. The
// locker's own branch is left out.
type RepoBranchNewCommits struct{ about }

func (c *RepoBranchNewCommits) Tests() []application.Test {
	return []application.Test{{Name: "NewRepoBranchCommits", Run: c.commits}}
}

func (c *RepoBranchNewCommits) commits(_ context.Context, run *application.Run, r *domain.Results) error {
	branches := fetchers.Branches(run.Config, run.Locker.RepoURL(), branchesKey)
	return eachBranch(branches, commitsName, func(ref evidence.RepoRef, branch, p string) error {
		if ref.URL == run.Locker.RepoURL() && branch == run.Locker.Branch() {
			return nil
		}
		ev, err := run.Evidence(p)
		if err != nil {
			return err
		}
		authors, err := evidence.NewRepoCommit(ev).AuthorInfo()
		if err != nil {
			return err
		}
		check.NewBranchCommits(r, ref.URL, branch, authors)
		return nil
	})
}

// FilepathNewCommits surfaces every commit touching a watched file.
type FilepathNewCommits struct{ about }

func (c *FilepathNewCommits) Tests() []application.Test {
	return []application.Test{{Name: "NewFilepathCommits", Run: c.commits}}
}

func (c *FilepathNewCommits) commits(_ context.Context, run *application.Run, r *domain.Results) error {
	for _, bf := range fetchers.Filepaths(run.Config) {
		ref, err := evidence.ParseRepoURL(bf.URL)
		if err != nil {
			return err
		}
		for _, fp := range bf.Paths {
			ev, err := run.Evidence(fetchers.RawPath("auditree", evidence.FilepathCommitsName(ref.Service, ref.Repo, bf.Branch, fp)))
			if err != nil {
				return err
			}
			authors, err := evidence.NewRepoCommit(ev).AuthorInfo()
			if err != nil {
				return err
			}
			check.NewFilepathCommits(r, bf.URL, bf.Branch, fp, authors)
		}
	}
	return nil
}
