package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/budgetbox/internal/tui/theme"
)

// Status is the content of the bottom status bar.
type Status struct {
	Sync     string
	Color    lipgloss.Color
	Online   bool
	Account  string
	LastSync string
	Message  string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s Status) string {
	t := theme.Active

	style := lipgloss.NewStyle().Foreground(t.TextMuted).Width(width)
	syncStyle := lipgloss.NewStyle().Foreground(s.Color).Bold(true)
	netStyle := lipgloss.NewStyle().Foreground(t.Green)
	net := "online"
	if !s.Online {
		net = "offline"
		netStyle = netStyle.Foreground(t.Red)
	}

	left := " " + syncStyle.Render("● "+s.Sync) + "  " + netStyle.Render(net)
	if s.Account != "" {
		left += "  " + s.Account
	}
	if s.Message != "" {
		left += "  " + lipgloss.NewStyle().Foreground(t.Orange).Render(s.Message)
	}

	right := "[^s]push  [^r]pull  [^l]login  [^q]uit "
	if s.LastSync != "" {
		right = "synced " + s.LastSync + "  " + right
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	bar := left
	for range padding {
		bar += " "
	}
	bar += right

	return style.Render(bar)
}
