package tui

import (
	"errors"
	"strings"

	"github.com/theirongolddev/budgetbox/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// NewLoginForm builds the sign-in form shared by the editor and the login
// command. Values are written through email and password as the user types.
func NewLoginForm(email, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(email).
				Validate(func(s string) error {
					if !strings.Contains(strings.TrimSpace(s), "@") {
						return errors.New("enter an email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(false)
}

func newLoginForm(vals *loginValues) *huh.Form {
	return NewLoginForm(&vals.email, &vals.password)
}

func (a App) updateLoginForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		a.loginForm = nil
		return a, nil
	}

	form, cmd := a.loginForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.loginForm = f
	}

	switch a.loginForm.State {
	case huh.StateCompleted:
		a.loginForm = nil
		email, password := strings.TrimSpace(a.login.email), a.login.password
		*a.login = loginValues{}
		return a.start("login", a.loginCmd(email, password))
	case huh.StateAborted:
		a.loginForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) viewLogin() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)

	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	body := logoStyle.Render("◈ Sign in to sync") + "\n\n" +
		a.loginForm.View() + "\n" +
		hintStyle.Render("enter to submit · esc to cancel")
	card := cardStyle.Render(body)

	return lipgloss.Place(a.width, max(a.height, lipgloss.Height(card)), lipgloss.Center, lipgloss.Center, card)
}
