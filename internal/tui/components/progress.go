package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/budgetbox/internal/tui/theme"
)

// ShareBar renders a labeled bar for a category's share of expenses.
// pct is on the 0-100 scale.
func ShareBar(label string, pct float64, color lipgloss.Color, labelW, barWidth int) string {
	t := theme.Active

	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(barWidth))
	filled = min(max(filled, 0), barWidth)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	fillStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim)
	pctStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
		fillStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", barWidth-filled)) + " " +
		pctStyle.Render(fmt.Sprintf("%5.1f%%", pct))
}

// MonthBar renders how far through the month we are. fraction is 0.0-1.0.
func MonthBar(label string, fraction float64, labelW, barWidth int) string {
	t := theme.Active

	fraction = min(max(fraction, 0), 1)
	bar := progress.New(
		progress.WithSolidFill(string(t.Accent)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	pctStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
		bar.ViewAs(fraction) + " " +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", fraction*100))
}
