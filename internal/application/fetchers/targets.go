package fetchers

import (
	"github.com/spf13/cast"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// DefaultBranch is watched on the locker repository when no branches are
// configured.
const DefaultBranch = "master"

const (
	branchesKey  = "org.auditree.repo_integrity.branches"
	reposKey     = "org.auditree.repo_integrity.repos"
	filepathsKey = "org.auditree.repo_integrity.filepaths"
)

// RepoBranches is a repository URL and the branches watched on it.
type RepoBranches struct {
	URL      string
	Branches []string
}

// Branches reads the repository to branches map from the first of paths
// that is set, in document order. With none set the locker repository's
// master branch is watched.
func Branches(cfg domain.Config, lockerURL string, paths ...string) []RepoBranches {
	if len(paths) == 0 {
		paths = []string{branchesKey}
	}
	for _, p := range paths {
		if !cfg.Has(p) {
			continue
		}
		m := cfg.StringSliceMap(p, nil)
		out := make([]RepoBranches, 0, len(m))
		for _, url := range cfg.Keys(p) {
			out = append(out, RepoBranches{URL: url, Branches: m[url]})
		}
		return out
	}
	return []RepoBranches{{URL: lockerURL, Branches: []string{DefaultBranch}}}
}

// Repos reads the repository list from the first of paths that is set,
// defaulting to the locker repository.
func Repos(cfg domain.Config, lockerURL string, paths ...string) []string {
	if len(paths) == 0 {
		paths = []string{reposKey}
	}
	for _, p := range paths {
		if cfg.Has(p) {
			return cfg.StringSlice(p, nil)
		}
	}
	return []string{lockerURL}
}

// BranchFilepaths is one watched branch and the file paths watched on it.
type BranchFilepaths struct {
	URL    string
	Branch string
	Paths  []string
}

// Filepaths flattens org.auditree.repo_integrity.filepaths, a map of
// repository URL to branch to file paths.
func Filepaths(cfg domain.Config) []BranchFilepaths {
	var out []BranchFilepaths
	repos := cfg.StringMap(filepathsKey)
	for _, url := range cfg.Keys(filepathsKey) {
		branches := cast.ToStringMapStringSlice(repos[url])
		for _, branch := range cfg.NestedKeys(filepathsKey, url) {
			out = append(out, BranchFilepaths{URL: url, Branch: branch, Paths: branches[branch]})
		}
	}
	return out
}
