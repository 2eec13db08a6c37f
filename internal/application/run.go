package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// Fetcher collects raw evidence from one provider into the locker.
type Fetcher interface {
	// Name is the dotted registry name, e.g. github.recent_commits.
	Name() string
	Description() string
	Fetch(ctx context.Context, run *Run) error
}

// Test is one assertion of a check. Findings go to r; a returned error
// marks the test as errored but keeps what was already reported.
type Test struct {
	Name string
	Run  func(ctx context.Context, run *Run, r *domain.Results) error
}

// ReportSpec locates a check's report evidence under reports/.
type ReportSpec struct {
	Category    string
	Name        string
	Description string
}

// Check asserts properties over evidence in the locker.
type Check interface {
	Name() string
	Title() string
	Report() ReportSpec
	Tests() []Test
}

// Run is handed to a single fetcher or check. It carries the run wide
// configuration and records which evidence the component touched.
type Run struct {
	Config domain.Config
	Locker domain.EvidenceLocker
	Creds  domain.Credentials
	Log    *zap.Logger
	Now    time.Time
	// Force refetches evidence that is still fresh.
	Force bool
	// IgnoreTTL lets checks read stale evidence.
	IgnoreTTL bool

	title    string
	written  []string
	skipped  []string
	read     []string
	readSeen map[string]bool
}

// NewRun returns a run at now. A nil logger is replaced with a no-op one.
func NewRun(cfg domain.Config, locker domain.EvidenceLocker, creds domain.Credentials, log *zap.Logger, now time.Time) *Run {
	if log == nil {
		log = zap.NewNop()
	}
	return &Run{Config: cfg, Locker: locker, Creds: creds, Log: log, Now: now}
}

// Store fills ev with produce and adds it to the locker, unless the locker
// already holds a fresh version and the run is not forced.
func (r *Run) Store(ev *domain.Evidence, produce func(ev *domain.Evidence) error) error {
	if !r.Force {
		md, err := r.Locker.GetEvidenceMetadata(ev.Path())
		if err != nil {
			return fmt.Errorf("reading metadata of %s: %w", ev.Path(), err)
		}
		if md != nil && md.IsFresh(r.Now) {
			r.Log.Debug("evidence still fresh", zap.String("path", ev.Path()), zap.Time("last_update", md.LastUpdate))
			r.skipped = append(r.skipped, ev.Path())
			return nil
		}
	}
	if err := produce(ev); err != nil {
		return fmt.Errorf("fetching %s: %w", ev.Path(), err)
	}
	return r.Put(ev)
}

// Put adds ev to the locker regardless of freshness.
func (r *Run) Put(ev *domain.Evidence) error {
	if err := r.Locker.AddEvidence(ev); err != nil {
		return fmt.Errorf("storing %s: %w", ev.Path(), err)
	}
	r.written = append(r.written, ev.Path())
	return nil
}

// LastUpdate returns the recorded last update of p, or the zero time.
func (r *Run) LastUpdate(p string) (time.Time, error) {
	md, err := r.Locker.GetEvidenceMetadata(p)
	if err != nil || md == nil {
		return time.Time{}, err
	}
	return md.LastUpdate, nil
}

// FormattedLastUpdate returns the recorded last update of p in the locker
// format, or "" when nothing is recorded.
func (r *Run) FormattedLastUpdate(p string) string {
	md, err := r.Locker.GetEvidenceMetadata(p)
	if err != nil || md == nil {
		return ""
	}
	return md.FormattedLastUpdate()
}

func (r *Run) noteRead(p string) {
	if r.readSeen == nil {
		r.readSeen = map[string]bool{}
	}
	if !r.readSeen[p] {
		r.readSeen[p] = true
		r.read = append(r.read, p)
	}
}

// Evidence returns the current version of p. Evidence past its TTL is
// refused with domain.ErrStaleEvidence unless IgnoreTTL is set. Evidence
// without recorded metadata is accepted.
func (r *Run) Evidence(p string) (*domain.Evidence, error) {
	ev, err := r.Locker.GetEvidence(p)
	if err != nil {
		return nil, err
	}
	r.noteRead(ev.Path())
	if r.IgnoreTTL {
		return ev, nil
	}
	md, err := r.Locker.GetEvidenceMetadata(ev.Path())
	if err != nil {
		return nil, err
	}
	if md != nil && md.TTL > 0 && !md.IsFresh(r.Now) {
		return nil, fmt.Errorf("%s last updated %s: %w", ev.Path(), md.FormattedLastUpdate(), domain.ErrStaleEvidence)
	}
	return ev, nil
}

// HistoricalEvidence returns the version of p current on or before at.
func (r *Run) HistoricalEvidence(p string, at time.Time) (*domain.Evidence, error) {
	ev, err := r.Locker.GetHistoricalEvidence(p, at)
	if err != nil {
		return nil, err
	}
	r.noteRead(ev.Path())
	return ev, nil
}

// OptionalEvidence is Evidence that reports a missing file as nil.
func (r *Run) OptionalEvidence(p string) (*domain.Evidence, error) {
	ev, err := r.Evidence(p)
	if errors.Is(err, domain.ErrEvidenceNotFound) {
		return nil, nil
	}
	return ev, err
}

// SetTitle overrides the check title shown in its report.
func (r *Run) SetTitle(title string) { r.title = title }

// Title returns the title set with SetTitle.
func (r *Run) Title() string { return r.title }

// Written lists the evidence paths stored by this run.
func (r *Run) Written() []string { return r.written }

// Skipped lists the evidence paths left alone because they were fresh.
func (r *Run) Skipped() []string { return r.skipped }

// Read lists the evidence paths read by this run, first read first.
func (r *Run) Read() []string { return r.read }
