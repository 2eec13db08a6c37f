package domain

import "time"

// FindingKind classifies a check result item.
type FindingKind string

const (
	FindingFailure FindingKind = "failure"
	FindingWarning FindingKind = "warning"
	FindingSuccess FindingKind = "success"
)

// Finding is a single item reported by a check under a section label.
// Item is a string or any JSON-serializable value.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	Section string      `json:"section"`
	Item    any         `json:"item"`
}

// Status is the outcome of one check test or fetcher.
type Status string

const (
	StatusPass  Status = "pass"
	StatusWarn  Status = "warn"
	StatusFail  Status = "fail"
	StatusError Status = "error"
	StatusSkip  Status = "skip"
)

// Results accumulates findings for one check test. Failures, warnings and
// successes are independent; nothing emitted means the test passed.
type Results struct {
	findings []Finding
}

func (r *Results) add(kind FindingKind, section string, item any) {
	r.findings = append(r.findings, Finding{Kind: kind, Section: section, Item: item})
}

// AddFailure records a blocking finding.
func (r *Results) AddFailure(section string, item any) { r.add(FindingFailure, section, item) }

// AddWarning records a tolerated finding.
func (r *Results) AddWarning(section string, item any) { r.add(FindingWarning, section, item) }

// AddSuccess records an informational finding.
func (r *Results) AddSuccess(section string, item any) { r.add(FindingSuccess, section, item) }

// Findings returns every finding in emission order.
func (r *Results) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	return out
}

// ByKind returns the findings of one kind in emission order.
func (r *Results) ByKind(kind FindingKind) []Finding {
	var out []Finding
	for _, f := range r.findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Count returns the number of findings of one kind.
func (r *Results) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Sections returns the distinct section labels of one kind, first seen first.
func (r *Results) Sections(kind FindingKind) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range r.findings {
		if f.Kind == kind && !seen[f.Section] {
			seen[f.Section] = true
			out = append(out, f.Section)
		}
	}
	return out
}

// Status derives pass/warn/fail from the accumulated findings.
func (r *Results) Status() Status {
	switch {
	case r.Count(FindingFailure) > 0:
		return StatusFail
	case r.Count(FindingWarning) > 0:
		return StatusWarn
	default:
		return StatusPass
	}
}

// TestResult is the outcome of one fetcher or check test.
type TestResult struct {
	Component string    `json:"component"`
	Test      string    `json:"test"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Findings  []Finding `json:"findings,omitempty"`
	Evidence  []string  `json:"evidence,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

// RunKind names the phase a run executed.
type RunKind string

const (
	RunFetch RunKind = "fetch"
	RunCheck RunKind = "check"
)

// RunReport collects every result of a fetch or check run.
type RunReport struct {
	ID       string       `json:"id"`
	Kind     RunKind      `json:"kind"`
	Commit   string       `json:"locker_commit,omitempty"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Results  []TestResult `json:"results"`
}

// Totals counts results per status.
func (r *RunReport) Totals() map[Status]int {
	totals := map[Status]int{}
	for _, res := range r.Results {
		totals[res.Status]++
	}
	return totals
}

// Failed reports whether any result failed or errored.
func (r *RunReport) Failed() bool {
	t := r.Totals()
	return t[StatusFail] > 0 || t[StatusError] > 0
}

// CheckReport is the content of the report evidence one check writes.
type CheckReport struct {
	Title       string
	Component   string
	Description string
	GeneratedAt time.Time
	Results     []TestResult
	// Evidence lists the locker paths the check read.
	Evidence []string
}
