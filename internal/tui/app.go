// Package tui provides the interactive Bubble Tea budget editor.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/budgetbox/internal/advisor"
	"github.com/theirongolddev/budgetbox/internal/analytics"
	"github.com/theirongolddev/budgetbox/internal/cli"
	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/mutation"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/tui/components"
	"github.com/theirongolddev/budgetbox/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Editor receives raw field edits. mutation.Pipeline satisfies it.
type Editor interface {
	UpdateField(field model.Field, raw string) error
	Flush(ctx context.Context) error
}

// Syncer reconciles with the remote store. syncer.Coordinator satisfies it.
type Syncer interface {
	Login(ctx context.Context, email, password string) (state.State, error)
	Logout() state.State
	Push(ctx context.Context) (state.State, error)
	Pull(ctx context.Context) (state.State, error)
}

// Options wires the editor to the engine.
type Options struct {
	Store    *state.Store
	Editor   Editor
	Syncer   Syncer
	Currency string
	Now      func() time.Time
}

// StateChangedMsg is sent when the store published a new state.
type StateChangedMsg struct{}

// SyncDoneMsg is sent when a push, pull or login finishes.
type SyncDoneMsg struct {
	Op    string
	State state.State
	Err   error
}

const (
	minTerminalWidth = 80
	maxContentWidth  = 140
	formWidth        = 40
	labelWidth       = 16

	opTimeout = 30 * time.Second
)

type loginValues struct {
	email    string
	password string
}

// App is the root Bubble Tea model.
type App struct {
	store    *state.Store
	editor   Editor
	syncer   Syncer
	currency string
	now      func() time.Time

	st      state.State
	changes chan struct{}

	inputs []textinput.Model
	focus  int
	dirty  map[model.Field]bool

	width  int
	height int

	busy        string // op in flight, empty when idle
	spinner     spinner.Model
	notice      string
	confirmPull bool

	loginForm *huh.Form
	login     *loginValues
}

// NewApp creates a new TUI app model and subscribes it to store changes.
func NewApp(opts Options) App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Currency == "" {
		opts.Currency = "₹"
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	changes := make(chan struct{}, 1)
	opts.Store.Subscribe(func(state.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	a := App{
		store:    opts.Store,
		editor:   opts.Editor,
		syncer:   opts.Syncer,
		currency: opts.Currency,
		now:      opts.Now,
		st:       opts.Store.Snapshot(),
		changes:  changes,
		dirty:    make(map[model.Field]bool),
		spinner:  sp,
		login:    &loginValues{},
	}

	a.inputs = make([]textinput.Model, len(model.Fields))
	for i, f := range model.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = "0"
		ti.CharLimit = 18
		ti.Width = formWidth - labelWidth - 10
		ti.SetValue(formatValue(a.st.Budget.Get(f)))
		a.inputs[i] = ti
	}
	a.inputs[0].Focus()
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(a.changes))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return StateChangedMsg{}
	}
}

func formatValue(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.loginForm != nil {
			a.loginForm = a.loginForm.WithWidth(min(msg.Width, 60))
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.loginForm != nil {
			return a.updateLoginForm(msg)
		}
		return a.updateKeys(msg)

	case StateChangedMsg:
		a.st = a.store.Snapshot()
		a.syncInputs(false)
		return a, waitForChange(a.changes)

	case SyncDoneMsg:
		a.busy = ""
		a.st = a.store.Snapshot()
		if msg.Err != nil {
			a.notice = cli.FriendlyError(msg.Err)
		} else {
			a.notice = doneNotice(msg.Op)
		}
		if msg.Err == nil && (msg.Op == "pull" || msg.Op == "login") {
			a.syncInputs(true)
		}
		if errors.Is(msg.Err, model.ErrAuthentication) {
			a.syncInputs(true)
		}
		return a, nil

	case spinner.TickMsg:
		if a.busy == "" {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.loginForm != nil {
		return a.updateLoginForm(msg)
	}

	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return a, cmd
}

func doneNotice(op string) string {
	switch op {
	case "push":
		return "Pushed to the server."
	case "pull":
		return "Pulled the latest budget."
	case "login":
		return "Signed in."
	}
	return ""
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "ctrl+r" {
		a.confirmPull = false
	}

	switch key {
	case "ctrl+q", "esc":
		return a, a.quit()

	case "tab", "down", "enter":
		return a, a.setFocus((a.focus + 1) % len(a.inputs))

	case "shift+tab", "up":
		return a, a.setFocus((a.focus - 1 + len(a.inputs)) % len(a.inputs))

	case "ctrl+s":
		if a.busy != "" {
			return a, nil
		}
		return a.start("push", a.pushCmd())

	case "ctrl+r":
		if a.busy != "" {
			return a, nil
		}
		if a.st.HasUnsyncedChanges && !a.confirmPull {
			a.confirmPull = true
			a.notice = "Unsynced edits will be replaced. Press ctrl+r again to pull."
			return a, nil
		}
		a.confirmPull = false
		return a.start("pull", a.pullCmd())

	case "ctrl+l":
		if a.st.Session.IsAuthenticated() {
			a.notice = "Already signed in as " + a.st.Session.User.Email + "."
			return a, nil
		}
		*a.login = loginValues{}
		a.loginForm = newLoginForm(a.login)
		if a.width > 0 {
			a.loginForm = a.loginForm.WithWidth(min(a.width, 60))
		}
		return a, a.loginForm.Init()

	case "ctrl+o":
		a.st = a.syncer.Logout()
		a.notice = "Signed out."
		a.syncInputs(true)
		return a, nil
	}

	field := model.Fields[a.focus]
	before := a.inputs[a.focus].Value()
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	if after := a.inputs[a.focus].Value(); after != before {
		a.dirty[field] = true
		if err := a.editor.UpdateField(field, after); err != nil {
			a.notice = cli.FriendlyError(err)
		}
	}
	return a, cmd
}

func (a *App) setFocus(i int) tea.Cmd {
	a.inputs[a.focus].Blur()
	a.focus = i
	return a.inputs[a.focus].Focus()
}

func (a *App) start(op string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	a.busy = op
	a.notice = ""
	return *a, tea.Batch(cmd, a.spinner.Tick)
}

// quit flushes pending edits so nothing typed is lost.
func (a App) quit() tea.Cmd {
	editor := a.editor
	return tea.Sequence(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = editor.Flush(ctx)
		return nil
	}, tea.Quit)
}

func (a App) pushCmd() tea.Cmd {
	s := a.syncer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st, err := s.Push(ctx)
		return SyncDoneMsg{Op: "push", State: st, Err: err}
	}
}

func (a App) pullCmd() tea.Cmd {
	s := a.syncer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st, err := s.Pull(ctx)
		return SyncDoneMsg{Op: "pull", State: st, Err: err}
	}
}

func (a App) loginCmd(email, password string) tea.Cmd {
	s := a.syncer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st, err := s.Login(ctx, email, password)
		return SyncDoneMsg{Op: "login", State: st, Err: err}
	}
}

// syncInputs copies store values into the inputs. Unless force is set,
// fields the user is still typing into keep their text until the store
// catches up with them.
func (a *App) syncInputs(force bool) {
	for i, f := range model.Fields {
		want := a.st.Budget.Get(f)
		if !force && a.dirty[f] {
			if mutation.Coerce(a.inputs[i].Value()) == want {
				delete(a.dirty, f)
			}
			continue
		}
		delete(a.dirty, f)
		if mutation.Coerce(a.inputs[i].Value()) != want || force {
			a.inputs[i].SetValue(formatValue(want))
		}
	}
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  budgetbox needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if a.loginForm != nil {
		return a.viewLogin()
	}
	return a.viewMain()
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) viewMain() string {
	t := theme.Active
	cw := a.contentWidth()
	b := a.st.Budget
	sum := analytics.Summarize(b)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	title := titleStyle.Render("◈ budgetbox") + subtitleStyle.Render(" · "+cli.FormatMonth(b.Month))
	if a.busy != "" {
		title += "  " + a.spinner.View() + subtitleStyle.Render(" "+a.busy+"ing…")
	}

	left := components.ContentCard("Monthly Budget", a.viewForm(), formWidth)
	rightW := cw - formWidth
	right := lipgloss.JoinVertical(lipgloss.Left,
		a.viewMetrics(sum, rightW),
		a.viewBreakdown(sum, rightW),
		a.viewInsights(b, rightW),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left,
		" "+title,
		body,
		components.RenderStatusBar(cw, a.status()),
	)
}

func (a App) viewForm() string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	focusStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	curStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var sb strings.Builder
	for i, f := range model.Fields {
		marker, style := "  ", labelStyle
		if i == a.focus {
			marker, style = focusStyle.Render("› "), focusStyle
		}
		sb.WriteString(marker)
		sb.WriteString(style.Render(fmt.Sprintf("%-*s", labelWidth, f.Label())))
		sb.WriteString(curStyle.Render(a.currency))
		sb.WriteString(a.inputs[i].View())
		if i < len(model.Fields)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n\n")
	sb.WriteString(curStyle.Render("tab ↑↓ move · edits autosave"))
	return sb.String()
}

func (a App) viewMetrics(sum model.Summary, width int) string {
	t := theme.Active
	level := analytics.Level(sum.BurnRate)
	savingsColor := t.Green
	if sum.SavingsPotential < 0 {
		savingsColor = t.Red
	}
	return components.MetricCardRow([]components.Metric{
		{Label: "Total Expenses", Value: cli.FormatMoney(a.currency, sum.TotalExpenses)},
		{Label: "Savings", Value: cli.FormatMoney(a.currency, sum.SavingsPotential), Color: savingsColor},
		{Label: "Burn Rate", Value: cli.FormatPercent(sum.BurnRate), Note: string(level), Color: t.Burn(level)},
	}, width)
}

func (a App) viewBreakdown(sum model.Summary, width int) string {
	t := theme.Active
	inner := components.CardInnerWidth(width)
	barW := max(inner-labelWidth-9, 5)

	var sb strings.Builder
	if len(sum.Categories) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(t.TextDim).Render("No expenses yet"))
	}
	for _, c := range sum.Categories {
		sb.WriteString(components.ShareBar(c.Name, c.SharePercent, t.Category(c), labelWidth, barW))
		sb.WriteString("\n")
	}

	p := analytics.Project(a.st.Budget, a.now())
	sb.WriteString("\n")
	sb.WriteString(components.MonthBar(fmt.Sprintf("Day %d/%d", p.CurrentDay, p.DaysInMonth), p.MonthProgress, labelWidth, barW))
	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Render(fmt.Sprintf("Projected spend %s · savings %s",
		cli.FormatMoney(a.currency, p.ProjectedExpenses),
		cli.FormatMoney(a.currency, p.ProjectedSavings))))

	return components.ContentCard("Breakdown", sb.String(), width)
}

func (a App) viewInsights(b model.Budget, width int) string {
	t := theme.Active
	var lines []string
	for _, adv := range advisor.Advise(b) {
		tag := lipgloss.NewStyle().Foreground(t.Severity(adv.Severity)).Bold(true).Render("●")
		lines = append(lines, tag+" "+adv.Message)
	}
	body := lipgloss.NewStyle().Width(components.CardInnerWidth(width)).Render(strings.Join(lines, "\n"))
	return components.ContentCard("Insights", body, width)
}

func (a App) status() components.Status {
	t := theme.Active
	s := components.Status{
		Sync:    cli.FormatStatus(a.st.SyncStatus(), a.st.HasUnsyncedChanges),
		Color:   t.Status(a.st.SyncStatus()),
		Online:  a.st.Online,
		Message: a.notice,
	}
	if a.st.Session.IsAuthenticated() && a.st.Session.User != nil {
		s.Account = a.st.Session.User.Email
	}
	if a.st.LastSyncTime != nil {
		s.LastSync = cli.FormatAgo(*a.st.LastSyncTime, a.now())
	}
	if s.Message == "" && a.st.Err != nil {
		s.Message = cli.FriendlyError(a.st.Err)
	}
	return s
}
