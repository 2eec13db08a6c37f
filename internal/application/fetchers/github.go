package fetchers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// RawPath returns the locker path of raw evidence.
func RawPath(category, name string) string {
	return path.Join(string(domain.KindRaw), category, name)
}

// RecentCommits stores the commits pushed to each watched branch since the
// previous fetch.
type RecentCommits struct {
	pool *githubPool
}

func (*RecentCommits) Name() string { return "github.recent_commits" }
func (*RecentCommits) Description() string {
	return "Recent commits of the watched repository branches"
}

func (f *RecentCommits) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, rb := range Branches(run.Config, run.Locker.RepoURL()) {
		ref, err := evidence.ParseRepoURL(rb.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, branch := range rb.Branches {
			desc := fmt.Sprintf("%s recent commits for %s repo %s branch", ref.Service.DisplayName(), ref.Repo, branch)
			ev := domain.NewRawEvidence("auditree", evidence.RecentCommitsName(ref.Service, ref.Repo, branch), domain.Day, desc)
			errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
				gh, err := f.pool.repo(ref)
				if err != nil {
					return err
				}
				since, err := recentCommitsSince(run, ev)
				if err != nil {
					return err
				}
				commits, err := gh.Commits(ctx, ref.Repo, branch, "", since)
				if err != nil {
					return err
				}
				run.Log.Debug("fetched commits",
					zap.String("repo", ref.Repo), zap.String("branch", branch),
					zap.Time("since", since), zap.Int("count", len(commits)))
				return ev.SetJSON(orEmpty(commits))
			}))
		}
	}
	return errors.Join(errs...)
}

// recentCommitsSince continues from the previous fetch. Without one it
// looks back twice the TTL, at least one day.
func recentCommitsSince(run *application.Run, ev *domain.Evidence) (time.Time, error) {
	last, err := run.LastUpdate(ev.Path())
	if err != nil {
		return time.Time{}, err
	}
	if !last.IsZero() {
		return last, nil
	}
	period := 2 * ev.TTL
	if period < domain.Day {
		period = domain.Day
	}
	return run.Now.Add(-period), nil
}

// FilepathCommits stores the commits touching each watched file path since
// the previous fetch.
type FilepathCommits struct {
	pool *githubPool
}

func (*FilepathCommits) Name() string { return "github.filepath_commits" }
func (*FilepathCommits) Description() string {
	return "Recent commits of the watched file paths"
}

func (f *FilepathCommits) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, bf := range Filepaths(run.Config) {
		ref, err := evidence.ParseRepoURL(bf.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, fp := range bf.Paths {
			desc := fmt.Sprintf("%s recent commits for %s repo %s branch, %s file path",
				ref.Service.DisplayName(), ref.Repo, bf.Branch, fp)
			name := evidence.FilepathCommitsName(ref.Service, ref.Repo, bf.Branch, fp)
			ev := domain.NewRawEvidence("auditree", name, domain.Day, desc)
			errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
				gh, err := f.pool.repo(ref)
				if err != nil {
					return err
				}
				since, err := run.LastUpdate(ev.Path())
				if err != nil {
					return err
				}
				if since.IsZero() {
					since = run.Now
				}
				commits, err := gh.Commits(ctx, ref.Repo, bf.Branch, fp, since)
				if err != nil {
					return err
				}
				return ev.SetJSON(orEmpty(commits))
			}))
		}
	}
	return errors.Join(errs...)
}

// BranchProtection stores the protection settings of each watched branch.
type BranchProtection struct {
	pool *githubPool
}

func (*BranchProtection) Name() string { return "github.branch_protection" }
func (*BranchProtection) Description() string {
	return "Branch protection of the watched repository branches"
}

func (f *BranchProtection) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, rb := range Branches(run.Config, run.Locker.RepoURL()) {
		ref, err := evidence.ParseRepoURL(rb.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, branch := range rb.Branches {
			desc := fmt.Sprintf("%s branch protection for %s repo %s branch", ref.Service.DisplayName(), ref.Repo, branch)
			ev := domain.NewRawEvidence("auditree", evidence.BranchProtectionName(ref.Service, ref.Repo, branch), domain.Day, desc)
			errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
				gh, err := f.pool.repo(ref)
				if err != nil {
					return err
				}
				protection, err := gh.BranchProtection(ctx, ref.Repo, branch)
				if err != nil {
					return err
				}
				return ev.SetJSON(protection)
			}))
		}
	}
	return errors.Join(errs...)
}

// RepoMetadata stores the repository details of each watched repository.
type RepoMetadata struct {
	pool *githubPool
}

func (*RepoMetadata) Name() string        { return "github.repo_metadata" }
func (*RepoMetadata) Description() string { return "Metadata of the watched repositories" }

func (f *RepoMetadata) Fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, url := range Repos(run.Config, run.Locker.RepoURL()) {
		ref, err := evidence.ParseRepoURL(url)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		desc := fmt.Sprintf("%s %s repo metadata details", ref.Service.DisplayName(), ref.Repo)
		ev := domain.NewRawEvidence("auditree", evidence.RepoMetadataName(ref.Service, ref.Repo), domain.Day, desc)
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			gh, err := f.pool.repo(ref)
			if err != nil {
				return err
			}
			details, err := gh.Repository(ctx, ref.Repo)
			if err != nil {
				return err
			}
			return ev.SetJSON(details)
		}))
	}
	return errors.Join(errs...)
}
