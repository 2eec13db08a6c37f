package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	warningItemStyle   = lipgloss.NewStyle().Foreground(warning)
	hintStyle          = lipgloss.NewStyle().Foreground(dim).Italic(true)
)

// findingKinds is the order findings are listed in.
var findingKinds = []domain.FindingKind{domain.FindingFailure, domain.FindingWarning, domain.FindingSuccess}

// RenderResultDetail renders the error and the findings of one result,
// grouped by kind and then by section.
func RenderResultDetail(res domain.TestResult) string {
	var b strings.Builder

	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s  %s\n", titleStyle.Render(res.Component+"."+res.Test), hintStyle.Render(res.Title))

	if res.Error != "" {
		fmt.Fprintf(&b, "    %s %s\n", errorTagStyle.Render("error"), dimStyle.Render(firstLine(res.Error)))
	}

	for _, kind := range findingKinds {
		renderFindingSections(&b, kind, res.Findings)
	}
	return b.String()
}

func renderFindingSections(b *strings.Builder, kind domain.FindingKind, findings []domain.Finding) {
	var sections []string
	items := map[string][]any{}
	for _, f := range findings {
		if f.Kind != kind {
			continue
		}
		if _, ok := items[f.Section]; !ok {
			sections = append(sections, f.Section)
		}
		items[f.Section] = append(items[f.Section], f.Item)
	}

	for _, section := range sections {
		fmt.Fprintf(b, "    %s %s %s\n",
			kindTag(kind),
			sectionHeaderStyle.Render(section),
			dimStyle.Render(fmt.Sprintf("(%d)", len(items[section]))),
		)
		for _, item := range items[section] {
			fmt.Fprintf(b, "        %s %s\n", kindBullet(kind), formatItem(item))
		}
	}
}

func kindTag(kind domain.FindingKind) string {
	switch kind {
	case domain.FindingFailure:
		return errorTagStyle.Render("fail")
	case domain.FindingWarning:
		return warnTagStyle.Render("warn")
	default:
		return infoTagStyle.Render("info")
	}
}

func kindBullet(kind domain.FindingKind) string {
	switch kind {
	case domain.FindingFailure:
		return failStyle.Render("●")
	case domain.FindingWarning:
		return warningItemStyle.Render("●")
	default:
		return passStyle.Render("●")
	}
}

// formatItem prints strings as is and structured items as compact JSON.
func formatItem(item any) string {
	if s, ok := item.(string); ok {
		return s
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprint(item)
	}
	return string(data)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
