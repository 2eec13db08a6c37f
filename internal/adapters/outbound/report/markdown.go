// Package report renders check results as markdown report evidence.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/camelcase"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// Renderer implements domain.ReportRenderer with Markdown.
type Renderer struct{}

// Render renders in as markdown.
func (Renderer) Render(in domain.CheckReport) []byte { return Markdown(in) }

// TestTitle returns title, or the test name split into words when title is
// empty: "MetadataIntegrity" becomes "Metadata Integrity".
func TestTitle(test, title string) string {
	if title != "" {
		return title
	}
	return strings.Join(camelcase.Split(test), " ")
}

// Markdown renders in as a markdown document.
func Markdown(in domain.CheckReport) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Report %s\n\n", in.Title, in.GeneratedAt.UTC().Format("2006-01-02"))
	if in.Description != "" {
		b.WriteString(in.Description + "\n\n")
	}
	fmt.Fprintf(&b, "Check: `%s`\n\n", in.Component)

	if len(in.Evidence) > 0 {
		b.WriteString("Evidence:\n\n")
		for _, ev := range in.Evidence {
			fmt.Fprintf(&b, "- `%s`\n", ev)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Summary\n\n")
	b.WriteString(summaryTable(in.Results))
	b.WriteString("\n")

	for _, kind := range []domain.FindingKind{domain.FindingFailure, domain.FindingWarning, domain.FindingSuccess} {
		writeKind(&b, kind, in.Results)
	}
	for _, res := range in.Results {
		if res.Error != "" {
			fmt.Fprintf(&b, "## Errors\n\n")
			break
		}
	}
	for _, res := range in.Results {
		if res.Error != "" {
			fmt.Fprintf(&b, "### %s\n\n```\n%s\n```\n\n", TestTitle(res.Test, res.Title), res.Error)
		}
	}
	return []byte(b.String())
}

func summaryTable(results []domain.TestResult) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Test", "Status", "Failures", "Warnings", "Successes"})
	for _, res := range results {
		counts := map[domain.FindingKind]int{}
		for _, f := range res.Findings {
			counts[f.Kind]++
		}
		w.AppendRow(table.Row{
			TestTitle(res.Test, res.Title),
			strings.ToUpper(string(res.Status)),
			counts[domain.FindingFailure],
			counts[domain.FindingWarning],
			counts[domain.FindingSuccess],
		})
	}
	return w.RenderMarkdown() + "\n"
}

var kindHeadings = map[domain.FindingKind]string{
	domain.FindingFailure: "Failures",
	domain.FindingWarning: "Warnings",
	domain.FindingSuccess: "Successes",
}

func writeKind(b *strings.Builder, kind domain.FindingKind, results []domain.TestResult) {
	wroteHeading := false
	for _, res := range results {
		var sections []string
		items := map[string][]any{}
		for _, f := range res.Findings {
			if f.Kind != kind {
				continue
			}
			if _, ok := items[f.Section]; !ok {
				sections = append(sections, f.Section)
			}
			items[f.Section] = append(items[f.Section], f.Item)
		}
		if len(sections) == 0 {
			continue
		}
		if !wroteHeading {
			fmt.Fprintf(b, "## %s\n\n", kindHeadings[kind])
			wroteHeading = true
		}
		fmt.Fprintf(b, "### %s\n\n", TestTitle(res.Test, res.Title))
		for _, section := range sections {
			fmt.Fprintf(b, "#### %s\n\n", section)
			b.WriteString(renderItems(items[section]))
			b.WriteString("\n")
		}
	}
}

// renderItems prints a table when every item is an object with the same
// keys, and a bullet list otherwise. Multi-line strings become code blocks.
func renderItems(items []any) string {
	if cols, rows, ok := tabular(items); ok {
		w := table.NewWriter()
		header := make(table.Row, len(cols))
		for i, c := range cols {
			header[i] = c
		}
		w.AppendHeader(header)
		for _, r := range rows {
			w.AppendRow(r)
		}
		return w.RenderMarkdown() + "\n"
	}

	var b strings.Builder
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			data, err := json.Marshal(item)
			if err != nil {
				s = fmt.Sprint(item)
			} else {
				s = "`" + string(data) + "`"
			}
		}
		if strings.Contains(s, "\n") {
			fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimRight(s, "\n"))
			continue
		}
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String()
}

// tabular normalizes items through JSON and reports whether they are all
// flat objects sharing one key set.
func tabular(items []any) ([]string, []table.Row, bool) {
	var cols []string
	var rows []table.Row
	for i, item := range items {
		if _, isString := item.(string); isString {
			return nil, nil, false
		}
		data, err := json.Marshal(item)
		if err != nil {
			return nil, nil, false
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil || len(obj) == 0 {
			return nil, nil, false
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if i == 0 {
			cols = keys
		} else if strings.Join(keys, "\x00") != strings.Join(cols, "\x00") {
			return nil, nil, false
		}
		row := make(table.Row, len(cols))
		for j, k := range cols {
			switch v := obj[k].(type) {
			case string:
				row[j] = v
			case map[string]any, []any:
				nested, _ := json.Marshal(v)
				row[j] = string(nested)
			default:
				row[j] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, len(rows) > 0
}
