package check

import (
	"fmt"
	"sort"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/timefmt"
)

// PackageDeltas warns on packages added, upgraded or removed between two
// snapshots of the execution environment.
func PackageDeltas(r *domain.Results, today, yesterday map[string]string) {
	for _, pkg := range domain.OrderedKeys(today, nil) {
		ver := today[pkg]
		prev, ok := yesterday[pkg]
		switch {
		case !ok:
			r.AddWarning("New Packages", fmt.Sprintf("%s version %s", pkg, ver))
		case prev != ver:
			r.AddWarning("Package Version Changes",
				fmt.Sprintf("%s previous version %s, current version %s", pkg, prev, ver))
		}
	}
	var removed []string
	for pkg := range yesterday {
		if _, ok := today[pkg]; !ok {
			removed = append(removed, pkg)
		}
	}
	sort.Strings(removed)
	for _, pkg := range removed {
		r.AddWarning("Removed Packages", fmt.Sprintf("%s version %s", pkg, yesterday[pkg]))
	}
}

// NoPackageHistory records that no earlier snapshot exists to compare with.
func NoPackageHistory(r *domain.Results, at time.Time) {
	r.AddWarning("Python Package Deltas",
		fmt.Sprintf("No evidence found on or prior to %s", timefmt.ReportDate(at)))
}

// LatestVersion warns when the installed version of pkg is not the latest
// release. A missing installation reads as "None".
func LatestVersion(r *domain.Results, pkg, latest string, installed map[string]string) {
	used, ok := installed[pkg]
	if !ok {
		used = "None"
	}
	if used == latest {
		return
	}
	r.AddWarning("Latest Version Violation",
		fmt.Sprintf("%s latest version %s, version used %s", pkg, latest, used))
}
