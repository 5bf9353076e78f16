package terminal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/richhaase/autose/internal/domain"
)

// MaxReportWidth is the maximum width for reports.
const MaxReportWidth = 90

// FormatDuration formats a duration as "12.3s" or "2m 5.0s".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	rest := d - time.Duration(mins)*time.Minute
	return fmt.Sprintf("%dm %.1fs", mins, rest.Seconds())
}

// ReportWidth returns the report width based on terminal width.
func ReportWidth() int {
	return min(GetTerminalWidth(), MaxReportWidth)
}

var (
	riskLabelStyle = lipgloss.NewStyle().Bold(true).Width(8)
	riskRuleStyle  = lipgloss.NewStyle().Faint(true)
)

// FormatRisks lays out lint results. Structured risks are printed as labelled
// blocks; free-form results are rendered as Markdown.
func FormatRisks(risks *domain.Risks, width int, r Renderer) string {
	if risks == nil {
		return ""
	}
	if !risks.Structured() {
		return r.Render(risks.PlainRisks)
	}
	if len(risks.Risks) == 0 {
		return "No risks found."
	}
	if width <= 20 {
		width = MaxReportWidth
	}

	labelStyle := riskLabelStyle
	ruleStyle := riskRuleStyle
	if !ColorsEnabled() {
		labelStyle = lipgloss.NewStyle().Width(8)
		ruleStyle = lipgloss.NewStyle()
	}
	bodyStyle := lipgloss.NewStyle().Width(width - 8)

	var b strings.Builder
	for i, risk := range risks.Risks {
		if i > 0 {
			b.WriteString(ruleStyle.Render(strings.Repeat("─", width)))
			b.WriteString("\n")
		}
		for _, field := range []struct{ label, text string }{
			{"Code", risk.WhichPartOfCode},
			{"Reason", risk.Reason},
			{"Fix", risk.Fix},
		} {
			row := lipgloss.JoinHorizontal(lipgloss.Top,
				labelStyle.Render(field.label),
				bodyStyle.Render(r.Render(field.text)))
			b.WriteString(row)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
