// Package timefmt renders durations and dates the way reports show them.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// ReportDateFormat is the date layout used in report headings, e.g. "Aug 20, 2020".
const ReportDateFormat = "Jan 02, 2006"

var intervals = []struct {
	unit    string
	seconds int64
}{
	{"days", 86400},
	{"hours", 3600},
	{"minutes", 60},
	{"seconds", 1},
}

// ParseSeconds renders a number of seconds as "1 day, 10 hours, 17 minutes,
// 36 seconds". Zero components are left out and singular units are used for
// a count of one.
func ParseSeconds(seconds int64) string {
	var parts []string
	for _, iv := range intervals {
		q := seconds / iv.seconds
		seconds %= iv.seconds
		if q == 0 {
			continue
		}
		unit := iv.unit
		if q == 1 {
			unit = strings.TrimSuffix(unit, "s")
		}
		parts = append(parts, fmt.Sprintf("%d %s", q, unit))
	}
	return strings.Join(parts, ", ")
}

// Duration is ParseSeconds for a time.Duration, truncated to whole seconds.
func Duration(d time.Duration) string {
	return ParseSeconds(int64(d / time.Second))
}

// ReportDate formats t with ReportDateFormat.
func ReportDate(t time.Time) string {
	return t.Format(ReportDateFormat)
}
