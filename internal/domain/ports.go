package domain

import "time"

// EvidenceLocker stores evidence and answers questions about its history.
type EvidenceLocker interface {
	AddEvidence(ev *Evidence) error
	GetEvidence(path string) (*Evidence, error)
	// GetHistoricalEvidence returns the version of path that was current on
	// or before at.
	GetHistoricalEvidence(path string, at time.Time) (*Evidence, error)
	// GetEvidenceMetadata returns nil and no error when nothing is recorded
	// for path.
	GetEvidenceMetadata(path string) (*EvidenceMetadata, error)
	AbandonedEvidences(threshold time.Duration) ([]string, error)
	EmptyEvidences() ([]string, error)
	LargeFiles(minSize int64) (map[string]int64, error)
	Commit(message string) error
	// CommitHash returns the hash of the locker's HEAD commit.
	CommitHash() (string, error)
	RepoURL() string
	Branch() string
}

// ConfigLoader reads the compliance configuration document.
type ConfigLoader interface {
	Load(path string) (Config, error)
}

// Credentials resolves secrets by section and key, e.g. ("github", "token").
type Credentials interface {
	Get(section, key string) (string, bool)
}

// RunHistory persists run reports next to a locker.
type RunHistory interface {
	Save(lockerPath string, report RunReport) error
	Load(lockerPath string) ([]RunReport, error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// ReportRenderer turns a check report into report evidence content.
type ReportRenderer interface {
	Render(report CheckReport) []byte
}

// RunRecorder observes finished runs, e.g. to export metrics.
type RunRecorder interface {
	Record(report *RunReport)
}
