// Package check holds the rules that turn evidence into findings. The rules
// are pure: callers load evidence and configuration, the rules only decide
// what is a failure, a warning or a success.
package check

import (
	"fmt"
	"sort"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain/evidence"
)

// Defaults shared by the abandoned evidence fetcher and the locker checks.
const (
	AbandonedThresholdDefault int64 = 30 * 86400
	MB                        int64 = 1024 * 1024
	LargeFileThresholdDefault int64 = 50 * MB
)

const (
	sectionAbandoned       = "Abandoned evidence"
	sectionExceptions      = "Exceptions"
	sectionEmpty           = "Empty Evidence"
	sectionExpectedEmpty   = "Expected Empty Evidence"
	sectionLargeFiles      = "Large Files:"
	sectionLargeFilesAlmst = "Large Files (almost):"
	unavailable            = "UNAVAILABLE"
)

// LastUpdateFunc returns the recorded last update of a locker path, or ""
// when the locker has no metadata for it.
type LastUpdateFunc func(path string) string

// AbandonedItem is the finding item for one abandoned evidence path.
type AbandonedItem struct {
	Path            string `json:"ae_path"`
	LastUpdate      string `json:"last_update"`
	ExceptionReason string `json:"exception_reason,omitempty"`
}

func abandonedItem(path string, lastUpdate LastUpdateFunc) AbandonedItem {
	lu := ""
	if lastUpdate != nil {
		lu = lastUpdate(path)
	}
	if lu == "" {
		lu = unavailable
	}
	return AbandonedItem{Path: path, LastUpdate: lu}
}

// AbandonedSince reports only what changed since the previous listing: paths
// newly abandoned fail, exceptions newly listed warn.
func AbandonedSince(r *domain.Results, current, previous evidence.AbandonedDoc, lastUpdate LastUpdateFunc) {
	before := make(map[string]bool, len(previous.Abandoned))
	for _, p := range previous.Abandoned {
		before[p] = true
	}
	for _, p := range current.Abandoned {
		if before[p] {
			continue
		}
		r.AddFailure(sectionAbandoned, abandonedItem(p, lastUpdate))
	}
	for _, p := range domain.OrderedKeys(current.Exceptions, nil) {
		if _, seen := previous.Exceptions[p]; seen {
			continue
		}
		item := abandonedItem(p, lastUpdate)
		item.ExceptionReason = current.Exceptions[p]
		r.AddWarning(sectionExceptions, item)
	}
}

// AbandonedByThreshold reports every abandoned path. Paths with a configured
// exception become warnings carrying the reason.
func AbandonedByThreshold(r *domain.Results, abandoned []string, exceptions map[string]string, lastUpdate LastUpdateFunc) {
	for _, p := range abandoned {
		item := abandonedItem(p, lastUpdate)
		if reason, ok := exceptions[p]; ok {
			item.ExceptionReason = reason
			r.AddWarning(sectionExceptions, item)
			continue
		}
		r.AddFailure(sectionAbandoned, item)
	}
}

// SplitAbandoned partitions abandoned paths into plain ones and those with a
// configured exception. The fetcher stores the result.
func SplitAbandoned(abandoned []string, exceptions map[string]string) evidence.AbandonedDoc {
	doc := evidence.AbandonedDoc{Abandoned: []string{}, Exceptions: map[string]string{}}
	for _, p := range abandoned {
		if reason, ok := exceptions[p]; ok {
			doc.Exceptions[p] = reason
			continue
		}
		doc.Abandoned = append(doc.Abandoned, p)
	}
	return doc
}

// EmptyEvidence fails every empty path unless it is listed as expected.
func EmptyEvidence(r *domain.Results, paths, expected []string) {
	allowed := make(map[string]bool, len(expected))
	for _, p := range expected {
		allowed[p] = true
	}
	for _, p := range paths {
		item := fmt.Sprintf("`%s`", p)
		if allowed[p] {
			r.AddWarning(sectionExpectedEmpty, item)
			continue
		}
		r.AddFailure(sectionEmpty, item)
	}
}

// LargeFileWarnSize is the size above which files are reported as almost
// too large.
func LargeFileWarnSize(threshold int64) float64 {
	return 0.8 * float64(threshold)
}

// LargeFiles fails files above threshold and warns on files above 80% of it.
func LargeFiles(r *domain.Results, files map[string]int64, threshold int64) {
	warn := LargeFileWarnSize(threshold)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		size := files[p]
		item := fmt.Sprintf("`%s` - %s", p, SizeString(size))
		switch {
		case size > threshold:
			r.AddFailure(sectionLargeFiles, item)
		case float64(size) > warn:
			r.AddWarning(sectionLargeFilesAlmst, item)
		}
	}
}

// SizeString renders a byte count in MB with one decimal, falling back to
// bytes when that would read 0.0 MB.
func SizeString(size int64) string {
	s := fmt.Sprintf("%.1f MB", float64(size)/float64(MB))
	if s == "0.0 MB" {
		return fmt.Sprintf("%d Bytes", size)
	}
	return s
}
