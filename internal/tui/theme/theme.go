// Package theme defines color themes for the budgetbox TUI.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/budgetbox/internal/model"
)

// Theme defines the color roles used throughout the TUI.
type Theme struct {
	Name         string
	Surface      lipgloss.Color // Card/panel backgrounds
	Border       lipgloss.Color // Subtle borders
	BorderAccent lipgloss.Color // Focused input borders
	TextDim      lipgloss.Color // Hints, placeholders
	TextMuted    lipgloss.Color // Labels, metadata
	TextPrimary  lipgloss.Color
	Accent       lipgloss.Color
	AccentBright lipgloss.Color
	Green        lipgloss.Color
	Orange       lipgloss.Color
	Red          lipgloss.Color
	Blue         lipgloss.Color
	Yellow       lipgloss.Color
	Magenta      lipgloss.Color
	Cyan         lipgloss.Color
}

// Active is the currently selected theme.
var Active = FlexokiDark

// FlexokiDark is the default theme.
var FlexokiDark = Theme{
	Name:         "flexoki-dark",
	Surface:      lipgloss.Color("#1C1B1A"),
	Border:       lipgloss.Color("#403E3C"),
	BorderAccent: lipgloss.Color("#3AA99F"),
	TextDim:      lipgloss.Color("#575653"),
	TextMuted:    lipgloss.Color("#878580"),
	TextPrimary:  lipgloss.Color("#FFFCF0"),
	Accent:       lipgloss.Color("#3AA99F"),
	AccentBright: lipgloss.Color("#5BC8BE"),
	Green:        lipgloss.Color("#879A39"),
	Orange:       lipgloss.Color("#DA702C"),
	Red:          lipgloss.Color("#D14D41"),
	Blue:         lipgloss.Color("#4385BE"),
	Yellow:       lipgloss.Color("#D0A215"),
	Magenta:      lipgloss.Color("#CE5D97"),
	Cyan:         lipgloss.Color("#24837B"),
}

// Terminal uses ANSI 16 colors only.
var Terminal = Theme{
	Name:         "terminal",
	Surface:      lipgloss.Color("0"),
	Border:       lipgloss.Color("8"),
	BorderAccent: lipgloss.Color("6"),
	TextDim:      lipgloss.Color("8"),
	TextMuted:    lipgloss.Color("7"),
	TextPrimary:  lipgloss.Color("15"),
	Accent:       lipgloss.Color("6"),
	AccentBright: lipgloss.Color("14"),
	Green:        lipgloss.Color("2"),
	Orange:       lipgloss.Color("3"),
	Red:          lipgloss.Color("1"),
	Blue:         lipgloss.Color("4"),
	Yellow:       lipgloss.Color("3"),
	Magenta:      lipgloss.Color("5"),
	Cyan:         lipgloss.Color("6"),
}

// All available themes.
var All = []Theme{FlexokiDark, Terminal}

// ByName returns a theme by its name, defaulting to FlexokiDark.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return FlexokiDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}

// Severity maps an advisory severity to a color.
func (t Theme) Severity(s model.Severity) lipgloss.Color {
	switch s {
	case model.SeverityError:
		return t.Red
	case model.SeverityWarning:
		return t.Orange
	case model.SeveritySuccess:
		return t.Green
	}
	return t.Blue
}

// Burn maps a burn-rate level to a color.
func (t Theme) Burn(l model.BurnLevel) lipgloss.Color {
	switch l {
	case model.BurnHigh:
		return t.Red
	case model.BurnElevated:
		return t.Yellow
	}
	return t.Green
}

// Status maps a sync status to a color.
func (t Theme) Status(s model.SyncStatus) lipgloss.Color {
	switch s {
	case model.StatusSynced:
		return t.Green
	case model.StatusPending:
		return t.Yellow
	}
	return t.TextMuted
}

// Category returns the chart color for a breakdown entry. Entries carry a
// hex color from analytics; the terminal theme falls back to ANSI colors.
func (t Theme) Category(c model.Category) lipgloss.Color {
	if t.Name != Terminal.Name && c.Color != "" {
		return lipgloss.Color(c.Color)
	}
	switch c.Field {
	case model.FieldMonthlyBills:
		return t.Red
	case model.FieldFood:
		return t.Orange
	case model.FieldTransport:
		return t.Blue
	case model.FieldSubscriptions:
		return t.Magenta
	}
	return t.Cyan
}
