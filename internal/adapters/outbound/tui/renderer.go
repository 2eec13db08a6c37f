package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// ── palette ──
var (
	accent    = lipgloss.Color("#0E7C66") // pine
	fg        = lipgloss.Color("#E8E6E3") // warm light gray
	dim       = lipgloss.Color("#6B7280") // muted gray
	faint     = lipgloss.Color("#3F3F46") // very dim
	success   = lipgloss.Color("#22C55E") // green
	danger    = lipgloss.Color("#EF4444") // red
	warning   = lipgloss.Color("#F59E0B") // amber-yellow
	info      = lipgloss.Color("#8B949E") // soft blue-gray
	skipColor = lipgloss.Color("#4B5563") // dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	skipStyle     = lipgloss.NewStyle().Foreground(skipColor)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// statusOrder is the order totals are listed in.
var statusOrder = []domain.Status{
	domain.StatusPass, domain.StatusWarn, domain.StatusFail, domain.StatusError, domain.StatusSkip,
}

// RenderRunReport renders a fetch or check run: a header box with totals,
// one line per result, then the findings of every result that has any.
func RenderRunReport(report *domain.RunReport) string {
	var b strings.Builder

	// ── Header ──
	title := headerStyle.Render("arboretum")
	subtitle := dimStyle.Render(fmt.Sprintf("%s run  %s", report.Kind, shortID(report.ID)))
	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + renderTotals(report.Totals())))
	b.WriteString("\n\n")

	if len(report.Results) == 0 {
		b.WriteString("  " + dimStyle.Render("Nothing ran.") + "\n")
		return b.String()
	}

	// ── Results ──
	for _, res := range report.Results {
		renderResultLine(&b, res)
	}

	// ── Findings ──
	var detailed []domain.TestResult
	for _, res := range report.Results {
		if len(res.Findings) > 0 || res.Error != "" {
			detailed = append(detailed, res)
		}
	}
	if len(detailed) > 0 {
		b.WriteString("\n  " + separatorLine + "\n")
		for _, res := range detailed {
			b.WriteString(RenderResultDetail(res))
		}
	}

	if report.Commit != "" {
		b.WriteString("\n  " + dimStyle.Render("locker commit "+shortHash(report.Commit)) + "\n")
	}
	return b.String()
}

func renderTotals(totals map[domain.Status]int) string {
	var parts []string
	for _, s := range statusOrder {
		if n := totals[s]; n > 0 {
			parts = append(parts, statusStyle(s).Bold(true).Render(fmt.Sprintf("%d %s", n, s)))
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("no results")
	}
	return strings.Join(parts, "  ")
}

func renderResultLine(b *strings.Builder, res domain.TestResult) {
	name := padRight(res.Component+"."+res.Test, 48)
	line := fmt.Sprintf("  %s %s %s", statusIcon(res.Status), titleStyle.Render(name), statusStyle(res.Status).Render(string(res.Status)))
	if res.Duration > 0 {
		line += "  " + faintStyle.Render(fmt.Sprintf("%.2fs", res.Duration))
	}
	b.WriteString(line + "\n")
}

func statusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusPass:
		return passStyle
	case domain.StatusWarn:
		return warnStyle
	case domain.StatusFail, domain.StatusError:
		return failStyle
	default:
		return skipStyle
	}
}

func statusIcon(s domain.Status) string {
	switch s {
	case domain.StatusSkip:
		return skipStyle.Render("○")
	case domain.StatusError:
		return errorTagStyle.Render("✗")
	default:
		return statusStyle(s).Render("●")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderHistory formats stored run reports for terminal output, oldest
// first.
func RenderHistory(reports []domain.RunReport) string {
	if len(reports) == 0 {
		return "  " + dimStyle.Render("No run history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Run History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for i, r := range reports {
		hash := shortHash(r.Commit)
		if hash == "" {
			hash = "·······"
		}
		totals := r.Totals()
		failing := totals[domain.StatusFail] + totals[domain.StatusError]

		line := fmt.Sprintf("  %s  %s  %s  %s",
			dimStyle.Render(r.Started.UTC().Format("2006-01-02 15:04")),
			faintStyle.Render(hash),
			padRight(string(r.Kind), 5),
			renderTotals(totals),
		)

		if i > 0 {
			prev := reports[i-1].Totals()
			diff := failing - (prev[domain.StatusFail] + prev[domain.StatusError])
			if diff > 0 {
				line += "  " + failStyle.Render(fmt.Sprintf("↑%d failing", diff))
			} else if diff < 0 {
				line += "  " + passStyle.Render(fmt.Sprintf("↓%d failing", -diff))
			}
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// RenderComponents lists the registered fetchers and checks.
func RenderComponents(fetchers, checks []string) string {
	var b strings.Builder
	section := func(title string, names []string) {
		fmt.Fprintf(&b, "\n  %s %s\n", titleStyle.Render(title), dimStyle.Render(fmt.Sprintf("(%d)", len(names))))
		for _, n := range names {
			b.WriteString("    " + infoTagStyle.Render("·") + " " + n + "\n")
		}
	}
	section("Fetchers", fetchers)
	section("Checks", checks)
	b.WriteString("\n")
	return b.String()
}
