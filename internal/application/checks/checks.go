// Package checks binds the configuration and the evidence locker to the
// rules in domain/check. Each check reads the evidence its fetchers stored
// and reports findings per test; a report is written under reports/.
package checks

import (
	"errors"
	"fmt"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// All returns every check in registration order.
func All() []application.Check {
	return []application.Check{
		&AbandonedEvidence{about{"auditree.abandoned_evidence", "Abandoned Evidence",
			report("auditree", "abandoned_evidence.md", "Evidence locker abandoned evidence report.")}},
		&EmptyEvidence{about{"auditree.empty_evidence", "Empty Evidence",
			report("auditree", "empty_evidence.md", "Evidence locker empty evidence report.")}},
		&LargeFiles{about{"auditree.large_files", "Large Evidence Locker Files",
			report("auditree", "locker_large_files.md", "Evidence locker large files report.")}},
		&PythonPackages{about{"auditree.python_packages", "Python Packages",
			report("auditree", "python_packages.md", "Execution environment Python packages report.")}},
		&ComplianceConfig{about{"auditree.compliance_config", "Compliance Configuration",
			report("auditree", "compliance_config.md", "Compliance repository configuration settings report.")}},
		&LockerRepoIntegrity{about{"auditree.locker_repo_integrity", "Locker Repository Integrity",
			report("auditree", "locker_repo_integrity.md", "Evidence locker repository integrity report.")}},
		&LockerCommitIntegrity{about{"auditree.locker_commit_integrity", "Locker Commit Integrity",
			report("auditree", "locker_commit_integrity.md", "Evidence locker commit integrity report.")}},
		&RepoBranchNewCommits{about{"auditree.repo_branch_new_commits", "Repository/Branch New Commits",
			report("auditree", "repo_branch_new_commits.md", "Repository/branch new commits report.")}},
		&FilepathNewCommits{about{"auditree.filepath_new_commits", "Repository/Branch/Filepath New Commits",
			report("auditree", "filepath_new_commits.md", "Repository/branch/filepath new commits report.")}},
		&OrgCollaborators{about{"permissions.org_collaborators", "Repository Organization/Owner Collaborators",
			report("permissions", "org_collaborators.md", "Repository organization collaborators report.")}},
		&OrgPermissions{about{"permissions.org_permissions", "Report on Github Repositories Permissions",
			report("permissions", "org_permissions.md", "Github Repository Permissions.")}},
		&BucketEncryption{about{"cos.bucket_encryption", "COS bucket encryption key check",
			report("cos", "cos_bucket_encryption.md", "COS bucket encryption report")}},
		&ExpiredKeys{about{"cos.expired_keys", "COS bucket expired keys check",
			report("cos", "cos_bucket_key_valid.md", "COS bucket expired keys report")}},
	}
}

// about carries the static description of a check.
type about struct {
	name   string
	title  string
	report application.ReportSpec
}

func (a about) Name() string                   { return a.name }
func (a about) Title() string                  { return a.title }
func (a about) Report() application.ReportSpec { return a.report }

func report(category, name, desc string) application.ReportSpec {
	return application.ReportSpec{Category: category, Name: name, Description: desc}
}

// comparisonDate is the point in time a check compares the current evidence
// against.
func comparisonDate(run *application.Run) time.Time {
	return run.Now.Add(-domain.Day)
}

// historical returns the version of p on or before at, or nil when there
// is none.
func historical(run *application.Run, p string, at time.Time) (*domain.Evidence, error) {
	ev, err := run.HistoricalEvidence(p, at)
	if errors.Is(err, domain.ErrHistoricalEvidenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s as of %s: %w", p, at.Format(domain.LockerTimeFormat), err)
	}
	return ev, nil
}
